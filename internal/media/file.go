package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// Validate checks that the configured recordings exist and look usable.
// Every problem is reported, not just the first.
func Validate(opts Options) error {
	var problems []string
	if opts.VideoFile != "" {
		if opts.AudioOnly {
			problems = append(problems, fmt.Sprintf("%s: video file given with audio-only", opts.VideoFile))
		} else if err := validateFile(opts.VideoFile, ".ivf"); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if opts.AudioFile != "" {
		if err := validateFile(opts.AudioFile, ".ogg", ".opus"); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("media validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateFile(path string, exts ...string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: file does not exist", path)
		}
		return fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return fmt.Errorf("%s: is a directory", path)
	}
	if stat.Size() == 0 {
		return fmt.Errorf("%s: file is empty", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	known := false
	for _, e := range exts {
		known = known || ext == e
	}
	if !known {
		return fmt.Errorf("%s: unsupported extension (want %s)", path, strings.Join(exts, ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	return f.Close()
}

// ivfCodec reads the IVF header and maps its FourCC to a track codec.
func ivfCodec(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	switch header.FourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	default:
		return "", fmt.Errorf("%s: unsupported IVF codec %q", path, header.FourCC)
	}
}

// ivfPlayer plays an IVF file at its own frame rate, looping at the end.
func ivfPlayer(path string) player {
	return func(ctx context.Context, w sampleWriter) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		reader, header, err := ivfreader.NewWith(f)
		if err != nil {
			return err
		}
		if header.TimebaseDenominator == 0 {
			return fmt.Errorf("%s: zero timebase", path)
		}
		frame := time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
		if frame <= 0 {
			frame = videoFrame
		}

		return pace(ctx, frame, func() error {
			data, _, err := reader.ParseNextFrame()
			if errors.Is(err, io.EOF) {
				if _, err = f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				if reader, _, err = ivfreader.NewWith(f); err != nil {
					return err
				}
				data, _, err = reader.ParseNextFrame()
			}
			if err != nil {
				return err
			}
			return w.WriteSample(media.Sample{Data: data, Duration: frame})
		})
	}
}

// oggPlayer plays an Ogg/Opus file page by page, looping at the end.
func oggPlayer(path string) player {
	return func(ctx context.Context, w sampleWriter) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		reader, _, err := oggreader.NewWith(f)
		if err != nil {
			return err
		}

		var last uint64
		return pace(ctx, opusFrame, func() error {
			page, header, err := reader.ParseNextPage()
			if errors.Is(err, io.EOF) {
				if _, err = f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				if reader, _, err = oggreader.NewWith(f); err != nil {
					return err
				}
				last = 0
				page, header, err = reader.ParseNextPage()
			}
			if err != nil {
				return err
			}

			// Header pages carry no audio. Granule positions count 48kHz
			// samples.
			if header.GranulePosition <= last {
				return nil
			}
			samples := header.GranulePosition - last
			last = header.GranulePosition
			duration := time.Duration(float64(samples) / 48000 * float64(time.Second))
			return w.WriteSample(media.Sample{Data: page, Duration: duration})
		})
	}
}
