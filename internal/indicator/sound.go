package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/pulse"
	"github.com/rbright/voxdrop/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueSuccess
	cueFailure
)

const (
	synthRate = 16000
	toneGap   = 22 * time.Millisecond
	toneRamp  = 5 * time.Millisecond
)

// tone is one sine segment of a synthesized cue.
type tone struct {
	hz   float64
	dur  time.Duration
	gain float64
}

// cue pairs the built-in tone sequence with the config field that overrides it.
type cue struct {
	tones []tone
	file  func(config.IndicatorConfig) string
}

var cues = map[cueKind]cue{
	cueStart: {
		tones: []tone{{880, 70 * time.Millisecond, 0.18}, {1175, 70 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStartFile },
	},
	cueStop: {
		tones: []tone{{620, 120 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStopFile },
	},
	cueSuccess: {
		tones: []tone{{660, 60 * time.Millisecond, 0.16}, {880, 60 * time.Millisecond, 0.16}, {1320, 110 * time.Millisecond, 0.16}},
		file:  func(c config.IndicatorConfig) string { return c.SoundSuccessFile },
	},
	cueFailure: {
		tones: []tone{{440, 110 * time.Millisecond, 0.2}, {311, 160 * time.Millisecond, 0.2}},
		file:  func(c config.IndicatorConfig) string { return c.SoundFailureFile },
	},
}

// clipPCM is mono s16 audio ready for a pulse playback stream.
type clipPCM struct {
	rate    int
	samples []int16
}

// emitCue plays the configured file for kind, falling back to the built-in tones.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("emit cue: %w", err)
	}
	c, ok := cues[kind]
	if !ok {
		return nil
	}

	if path := expandUserPath(c.file(cfg)); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}
	return playPCM(clipPCM{rate: synthRate, samples: render(c.tones)})
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cues[kind]
	if !ok {
		return ""
	}
	return expandUserPath(c.file(cfg))
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw[1:], "/"))
}

// playCueFile plays WAV files through pulse and hands anything else to pw-play.
func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		clip, err := loadWAV(path)
		if err != nil {
			return err
		}
		return playPCM(clip)
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

// loadWAV decodes a PCM WAV file and downmixes it to mono s16.
func loadWAV(path string) (clipPCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return clipPCM{}, fmt.Errorf("open cue file %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return clipPCM{}, fmt.Errorf("cue file %q is not a PCM wav", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return clipPCM{}, fmt.Errorf("decode cue file %q: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return clipPCM{}, errors.New("cue file has no channels")
	}
	shift := buf.SourceBitDepth - 16

	frames := len(buf.Data) / channels
	out := make([]int16, frames)
	for i := range out {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		v := sum / channels
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		out[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
	return clipPCM{rate: buf.Format.SampleRate, samples: out}, nil
}

func playPCM(clip clipPCM) error {
	if len(clip.samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voxdrop"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	rest := clip.samples
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, rest)
		rest = rest[n:]
		if len(rest) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(clip.rate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("voxdrop notice cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

// render concatenates tones with short silent gaps at synthRate.
func render(tones []tone) []int16 {
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(toneGap))...)
		}
		pcm = append(pcm, t.sine()...)
	}
	return pcm
}

// sine renders t with linear attack and release ramps to avoid clicks.
func (t tone) sine() []int16 {
	n := sampleCount(t.dur)
	if n == 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}
	ramp := max(1, min(n/10, sampleCount(toneRamp)))

	pcm := make([]int16, n)
	for i := range pcm {
		edge := min(i, n-1-i)
		env := min(1, float64(edge)/float64(ramp))
		s := math.Sin(2 * math.Pi * t.hz * float64(i) / synthRate)
		pcm[i] = int16(math.Round(s * t.gain * env * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * synthRate))
}
