package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# glamour style name or JSON path for the lecture board (default "auto")
style: "auto"
# word-wrap the board at width (0 fits the terminal)
width: 0
# mouse support
mouse: false
# write debug logs
debug: false

# Where summaries, chat logs and synthesized speech are kept
storage:
  # memory, disk or sqlite
  backend: "disk"
  # data directory (default: the user data dir)
  # dir: "~/.local/share/hub"
  quota_mb: 50

# Lecture services
services:
  summarize_url: "http://127.0.0.1:8000/summarize_pages"
  doubt_url: "http://127.0.0.1:8000/doubt_clear"
  videos_url: "http://127.0.0.1:8090/extract_topics"
  timeout: "2m"
  requests_per_minute: 30

# Spoken lectures
speech:
  # gtts, piper or none
  engine: "gtts"
  language: "en"
  rate: 1.05
  piper:
    binary: "piper"
    # model: "~/piper/en_US-lessac-medium.onnx"

# Hands-free questions (needs CARTESIA_API_KEY)
voice:
  enabled: false
  triggers: ["uncle x", "hey x", "question", "explain"]
  language: "en"
  restart_delay: "300ms"
  # mic_command: "ffmpeg -f pulse -i default -ac 1 -ar 16000 -f s16le pipe:1"

# Reading progress and streaks (needs HUB_DATABASE_URL)
progress:
  enabled: false
`

var configCmd = &cobra.Command{
	Use:               "config",
	Hidden:            false,
	Short:             "Edit the hub config file",
	Long:              paragraph(fmt.Sprintf("\n%s the hub config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example:           paragraph("hub config\nhub config --config path/to/config.yml"),
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Hub", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
