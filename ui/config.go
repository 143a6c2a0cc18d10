package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Path of the lecture source file; watched for changes when set.
	Path string

	// Triggers is shown in the help view when voice commands are available.
	Triggers []string

	// For debugging the UI
	GlamourEnabled bool `env:"HUB_ENABLE_GLAMOUR" envDefault:"true"`
}
