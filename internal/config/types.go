// Package config resolves, parses, validates, and defaults voxdrop configuration.
package config

// Config is the fully materialized runtime configuration used by voxdrop.
type Config struct {
	API        APIConfig
	Audio      AudioConfig
	Indicator  IndicatorConfig
	RefreshCmd CommandConfig
}

// APIConfig locates the storage backend. BaseURL is fixed for the process lifetime.
type APIConfig struct {
	BaseURL string
}

// AudioConfig controls input-source selection and capture format.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
}

// IndicatorConfig controls user-visible notices and audio cues.
type IndicatorConfig struct {
	Enable           bool
	Backend          string
	DesktopAppName   string
	SoundEnable      bool
	SoundStartFile   string
	SoundStopFile    string
	SoundSuccessFile string
	SoundFailureFile string
	NoticeTimeoutMS  int
	ErrorTimeoutMS   int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
