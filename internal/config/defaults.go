package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000",
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
		},
		Indicator: IndicatorConfig{
			Enable:          true,
			Backend:         "desktop",
			DesktopAppName:  "voxdrop",
			SoundEnable:     true,
			NoticeTimeoutMS: 2500,
			ErrorTimeoutMS:  4000,
		},
	}
}
