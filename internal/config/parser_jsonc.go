package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// jsoncConfig mirrors Config with pointer fields so absent keys keep defaults.
type jsoncConfig struct {
	API *struct {
		BaseURL *string `json:"base_url"`
	} `json:"api"`
	Audio *struct {
		Input      *string `json:"input"`
		Fallback   *string `json:"fallback"`
		SampleRate *int    `json:"sample_rate"`
	} `json:"audio"`
	Indicator *struct {
		Enable           *bool   `json:"enable"`
		Backend          *string `json:"backend"`
		DesktopAppName   *string `json:"desktop_app_name"`
		SoundEnable      *bool   `json:"sound_enable"`
		SoundStartFile   *string `json:"sound_start_file"`
		SoundStopFile    *string `json:"sound_stop_file"`
		SoundSuccessFile *string `json:"sound_success_file"`
		SoundFailureFile *string `json:"sound_failure_file"`
		NoticeTimeoutMS  *int    `json:"notice_timeout_ms"`
		ErrorTimeoutMS   *int    `json:"error_timeout_ms"`
	} `json:"indicator"`
	RefreshCmd *string `json:"refresh_cmd"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if api := payload.API; api != nil {
		setTrimmed(&cfg.API.BaseURL, api.BaseURL)
	}

	if a := payload.Audio; a != nil {
		set(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.SampleRate, a.SampleRate)
	}

	if ind := payload.Indicator; ind != nil {
		out := &cfg.Indicator
		set(&out.Enable, ind.Enable)
		setTrimmed(&out.Backend, ind.Backend)
		setTrimmed(&out.DesktopAppName, ind.DesktopAppName)
		set(&out.SoundEnable, ind.SoundEnable)
		setTrimmed(&out.SoundStartFile, ind.SoundStartFile)
		setTrimmed(&out.SoundStopFile, ind.SoundStopFile)
		setTrimmed(&out.SoundSuccessFile, ind.SoundSuccessFile)
		setTrimmed(&out.SoundFailureFile, ind.SoundFailureFile)
		set(&out.NoticeTimeoutMS, ind.NoticeTimeoutMS)
		set(&out.ErrorTimeoutMS, ind.ErrorTimeoutMS)
	}

	if payload.RefreshCmd != nil {
		raw := *payload.RefreshCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid refresh_cmd: %w", err)
		}
		cfg.RefreshCmd = CommandConfig{Raw: raw, Argv: argv}
	}
	return nil
}

// normalizeJSONC blanks comments and trailing commas in a single pass. Every
// removed byte becomes a space (newlines survive) so decoder offsets still
// point into the original text.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	lastSignificant := -1

	for i := 0; i < len(out); i++ {
		switch ch := out[i]; {
		case ch == '"':
			i = skipJSONString(out, i)
		case ch == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
			continue
		case ch == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if out[i] != '\n' && out[i] != '\r' && out[i] != '\t' {
					out[i] = ' '
				}
			}
			i--
			continue
		case ch == '}' || ch == ']':
			if lastSignificant >= 0 && out[lastSignificant] == ',' {
				out[lastSignificant] = ' '
			}
		case isJSONWhitespace(ch):
			continue
		}
		lastSignificant = i
	}
	return string(out), nil
}

// skipJSONString returns the index of the closing quote for the string at start.
// An unterminated string is left for the decoder to report.
func skipJSONString(b []byte, start int) int {
	for i := start + 1; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(b) - 1
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	tok, err := decoder.Token()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("multiple JSON values are not allowed (found %v)", tok)
	}
}

func wrapJSONDecodeError(content string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a 1-based decoder offset to a 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	end := int(min(max(offset, 1), int64(len(content)))) - 1
	if end <= 0 {
		return 1, 1
	}
	prefix := content[:end]
	line := 1 + strings.Count(prefix, "\n")
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
