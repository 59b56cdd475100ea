package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// resampleQuality is the beep resampler quality used on import. Import runs
// off the hot path, so a high setting is affordable.
const resampleQuality = 6

var (
	// ErrUnsupportedFormat is returned by [Import] for unknown file types.
	ErrUnsupportedFormat = errors.New("audio: unsupported file format")

	// ErrEmptyTrack is returned by [Import] when the file decodes to no samples.
	ErrEmptyTrack = errors.New("audio: track contains no samples")
)

// SupportedExtensions lists the file extensions [Import] can decode.
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".ogg", ".oga"}

// Import decodes the audio file at path and converts it to format. The
// decoder is chosen by file extension.
func Import(path string, format beep.Format) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: import %s: %w", path, err)
	}
	defer f.Close()

	s, src, err := decode(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("audio: import %s: %w", path, err)
	}
	defer s.Close()

	buf, err := Convert(s, src, format)
	if err != nil {
		return nil, fmt.Errorf("audio: import %s: %w", path, err)
	}
	return buf, nil
}

// Convert reads s to the end and returns its samples as a buffer in format,
// resampling when the sample rates differ.
func Convert(s beep.Streamer, from, to beep.Format) (*beep.Buffer, error) {
	var src beep.Streamer = s
	if from.SampleRate != to.SampleRate {
		src = beep.Resample(resampleQuality, from.SampleRate, to.SampleRate, s)
	}
	buf := beep.NewBuffer(to)
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyTrack
	}
	return buf, nil
}

func decode(f *os.File, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(nopCloser{f})
	case ".flac":
		return flac.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(nopCloser{f})
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// nopCloser leaves closing the file to Import.
type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }
