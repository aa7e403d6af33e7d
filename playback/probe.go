package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

func decode(format string, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch format {
	case "wav":
		return wav.Decode(f)
	case "mp3":
		return mp3.Decode(f)
	case "flac":
		return flac.Decode(f)
	case "ogg":
		return vorbis.Decode(f)
	}
	return nil, beep.Format{}, ErrUnsupportedFormat
}

// SupportedFormats lists the file extensions Probe can decode.
func SupportedFormats() []string {
	return []string{"wav", "mp3", "flac", "ogg"}
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func IsFormatSupported(path string) bool {
	format := formatOf(path)
	for _, f := range SupportedFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// Probe reads a media header and reports its layout and length.
func Probe(path string) (FileInfo, error) {
	format := formatOf(path)
	if !IsFormatSupported(path) {
		return FileInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return FileInfo{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	streamer, fmtInfo, err := decode(format, f)
	if err != nil {
		_ = f.Close()
		return FileInfo{}, fmt.Errorf("failed to decode %s header: %w", format, err)
	}
	defer func() {
		_ = streamer.Close()
		_ = f.Close()
	}()

	return FileInfo{
		Path:       path,
		Format:     format,
		Channels:   fmtInfo.NumChannels,
		SampleRate: int(fmtInfo.SampleRate),
		Duration:   fmtInfo.SampleRate.D(streamer.Len()),
		SizeBytes:  stat.Size(),
	}, nil
}
