package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Info is what a probe learns from a file's header.
type Info struct {
	Codec      string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

var decoders = map[string]func(f *os.File) (beep.StreamSeekCloser, beep.Format, error){
	".mp3":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".wav":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) },
	".ogg":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
	".oga":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
}

// Playable reports whether path has an extension the probe can decode.
func Playable(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists the playable file extensions.
func Extensions() []string {
	return []string{".mp3", ".wav", ".flac", ".ogg", ".oga"}
}

// Probe decodes the header of path to confirm it is playable. A missing file
// yields an error wrapping fs.ErrNotExist; anything undecodable yields
// ErrUnsupportedCodec.
func Probe(path string) (Info, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		if _, err := os.Stat(path); err != nil {
			return Info{}, fmt.Errorf("open %s: %w", path, err)
		}
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
		}
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	stream, format, err := decode(f)
	if err != nil {
		f.Close()
		return Info{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedCodec, filepath.Base(path), err)
	}
	defer stream.Close()
	info := Info{
		Codec:      strings.TrimPrefix(ext, "."),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}
	if n := stream.Len(); n > 0 && format.SampleRate > 0 {
		info.Duration = format.SampleRate.D(n)
	}
	return info, nil
}
