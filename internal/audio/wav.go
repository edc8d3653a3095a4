package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	MIMETypeWAV = "audio/wav"

	wavPCMFormat = 1
)

// WAVEncoder frames raw s16le PCM into an in-memory RIFF/WAVE clip.
type WAVEncoder struct {
	SampleRate int
	Channels   int
}

// Encode returns the WAV bytes for pcm together with their MIME type.
func (e WAVEncoder) Encode(pcm []byte) ([]byte, string, error) {
	if len(pcm) < 2 {
		return nil, "", errors.New("encode wav: no samples")
	}

	sampleRate := e.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	channels := e.Channels
	if channels <= 0 {
		channels = 1
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, channels, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return nil, "", fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize wav: %w", err)
	}
	return out.Bytes(), MIMETypeWAV, nil
}

// memFile is an io.WriteSeeker over a growable byte slice; the WAV encoder
// seeks back to patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("seek: negative position")
	}
	m.pos = next
	return next, nil
}

func (m *memFile) Bytes() []byte {
	return m.buf
}
