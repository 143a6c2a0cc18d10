// Package main provides the entry point for the hub CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/ailearninghub/hub/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "hub [FILE]",
		Short: "Learn from your slides and PDFs with a spoken AI lecture",
		Long: paragraph(
			fmt.Sprintf("\nTurn a PDF, slide deck or document into a %s: summarized three pages at a time, read aloud, with a doubt chat and video recommendations for every section.", keyword("live lecture")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"pdf", "pptx", "docx", "txt", "md"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style, _ = homedir.Expand(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	dataDir, err := defaultDataDir()
	if err != nil {
		return err
	}

	cfg, err = config.Load(viper.GetViper(), dataDir)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := validateStyle(cfg.Style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal && !cmd.Flags().Changed("style") {
		cfg.Style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") && cfg.Width == 0 {
		if isTerminal {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				cfg.Width = uint(w) //nolint:gosec
			}
		}
		if cfg.Width == 0 {
			cfg.Width = 80
		}
	}
	return nil
}

func defaultDataDir() (string, error) {
	dirs, err := gap.NewScope(gap.User, "hub").DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	return dirs[0], nil
}

func execute(_ *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		p, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		if info, err := os.Stat(p); err != nil {
			return fmt.Errorf("unable to open file: %w", err)
		} else if info.IsDir() {
			return fmt.Errorf("%s is a directory", args[0])
		}
		path = p
	}
	return runTUI(path)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Bool("debug", false, "write debug logs")
	rootCmd.PersistentFlags().String("storage", "", "storage backend (memory, disk, sqlite)")
	rootCmd.Flags().StringP("style", "s", styles.AutoStyle, "board style name or JSON path")
	rootCmd.Flags().UintP("width", "w", 0, "word-wrap the board at width")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().String("engine", "", "speech engine (gtts, piper, none)")
	rootCmd.Flags().Bool("voice", false, "enable hands-free voice questions")
	rootCmd.Flags().Bool("progress", false, "record reading progress")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("voice.enabled", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("progress.enabled", rootCmd.Flags().Lookup("progress"))
	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage"))
	_ = viper.BindPFlag("speech.engine", rootCmd.Flags().Lookup("engine"))

	viper.SetDefault("mouse", false)

	rootCmd.AddCommand(configCmd, manCmd, ingestCmd, statsCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "hub")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "hub")}, dirs...)
	}

	if c := os.Getenv("HUB_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("hub")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("hub")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "hub.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
