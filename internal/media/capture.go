// Package media provides the local capture shared by every link: synthetic
// test-pattern tracks, or tracks played back from IVF and Ogg/Opus files.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/BioHazard786/meshroom/internal/negotiation"
)

// Options selects the capture sources.
type Options struct {
	// AudioOnly skips the video track.
	AudioOnly bool
	// VideoFile is an IVF recording (VP8 or VP9). Empty means synthetic.
	VideoFile string
	// AudioFile is an Ogg/Opus recording. Empty means synthetic.
	AudioFile string
	// StreamID groups the tracks on the remote side. Generated when empty.
	StreamID string
	Logger   *slog.Logger
}

// sampleWriter is the part of a static sample track the players use.
type sampleWriter interface {
	WriteSample(media.Sample) error
}

type player func(ctx context.Context, w sampleWriter) error

// Capture owns the local tracks and the goroutines feeding them.
type Capture struct {
	StreamID string

	tracks []webrtc.TrackLocal
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	log    *slog.Logger
}

var _ negotiation.Capture = (*Capture)(nil)

// Acquire validates the sources, creates the tracks and starts writing
// samples. Samples written before any link binds a track are dropped by
// pion, so playback starts right away.
func Acquire(ctx context.Context, opts Options) (*Capture, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}

	streamID := opts.StreamID
	if streamID == "" {
		streamID = "meshroom-" + uuid.NewString()
	}

	type source struct {
		track *webrtc.TrackLocalStaticSample
		play  player
	}
	var sources []source

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	audioPlay := syntheticAudio
	if opts.AudioFile != "" {
		audioPlay = oggPlayer(opts.AudioFile)
	}
	sources = append(sources, source{audio, audioPlay})

	if !opts.AudioOnly {
		mime := webrtc.MimeTypeVP8
		videoPlay := syntheticVideo
		if opts.VideoFile != "" {
			if mime, err = ivfCodec(opts.VideoFile); err != nil {
				return nil, err
			}
			videoPlay = ivfPlayer(opts.VideoFile)
		}
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000},
			"video", streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		sources = append(sources, source{video, videoPlay})
	}

	// Playback outlives the acquiring context; Close stops it.
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Capture{StreamID: streamID, cancel: cancel, log: log}
	for _, src := range sources {
		c.tracks = append(c.tracks, src.track)
		c.start(playCtx, src.track.Kind().String(), src.track, src.play)
	}
	log.Debug("capture started", "stream", streamID, "tracks", len(c.tracks))
	return c, nil
}

// Source adapts Acquire to the orchestrator's capture hook.
func Source(opts Options) negotiation.CaptureSource {
	return func(ctx context.Context) (negotiation.Capture, error) {
		return Acquire(ctx, opts)
	}
}

func (c *Capture) start(ctx context.Context, kind string, w sampleWriter, play player) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := play(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("capture stopped", "kind", kind, "error", err)
		}
	}()
}

func (c *Capture) Tracks() []webrtc.TrackLocal { return c.tracks }

// Close stops playback and waits for the writers to return.
func (c *Capture) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

// pace calls next every interval until ctx ends or next fails.
func pace(ctx context.Context, interval time.Duration, next func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := next(); err != nil {
				return err
			}
		}
	}
}
