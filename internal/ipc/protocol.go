package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxMessageBytes caps one JSON line in either direction.
const maxMessageBytes = 64 << 10

var errMessageTooLarge = errors.New("message exceeds 64 KiB")

// Request is one JSON line sent by a forwarding CLI invocation.
type Request struct {
	Command string `json:"command"`
	URL     string `json:"url,omitempty"`
}

// Response is the owner's single JSON-line reply.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Extraction string `json:"extraction,omitempty"`
	HasClip    bool   `json:"has_clip,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}

// readLine returns one newline-terminated message without the terminator.
func readLine(r io.Reader) ([]byte, error) {
	reader := bufio.NewReaderSize(io.LimitReader(r, maxMessageBytes+1), 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if len(line) > maxMessageBytes {
			return nil, errMessageTooLarge
		}
		return nil, err
	}
	return line[:len(line)-1], nil
}

func writeLine(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}
