package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	errUnterminatedQuote  = errors.New("unterminated quote")
	errUnterminatedEscape = errors.New("unterminated escape sequence")
)

// parseArgv splits a refresh command into argv using shell-like word rules:
// single quotes are literal, double quotes honor backslash escapes, and a
// leading '#' disables the command.
func parseArgv(input string) ([]string, error) {
	rest := strings.TrimSpace(input)
	if rest == "" || rest[0] == '#' {
		return nil, nil
	}

	var argv []string
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			return argv, nil
		}

		word, tail, err := scanWord(rest)
		if err != nil {
			return nil, fmt.Errorf("%w in command: %q", err, input)
		}
		argv = append(argv, word)
		rest = tail
	}
}

// scanWord consumes one word from s and returns it with the unconsumed tail.
func scanWord(s string) (string, string, error) {
	var word strings.Builder
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '\\':
			if i+1 >= len(s) {
				return "", "", errUnterminatedEscape
			}
			word.WriteByte(s[i+1])
			i += 2
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return "", "", errUnterminatedQuote
			}
			word.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case c == '"':
			n, err := scanDoubleQuoted(s[i+1:], &word)
			if err != nil {
				return "", "", err
			}
			i += n + 2
		case isASCIISpace(c):
			return word.String(), s[i:], nil
		default:
			word.WriteByte(c)
			i++
		}
	}
	return word.String(), "", nil
}

// scanDoubleQuoted writes the quoted body to word and returns how many bytes
// precede the closing quote.
func scanDoubleQuoted(s string, word *strings.Builder) (int, error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return i, nil
		case '\\':
			if i+1 >= len(s) {
				return 0, errUnterminatedQuote
			}
			i++
		}
		word.WriteByte(s[i])
	}
	return 0, errUnterminatedQuote
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
