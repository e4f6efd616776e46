package media

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	opusFrame  = 20 * time.Millisecond
	videoFrame = time.Second / 30
)

// opusSilence is a single 20ms Opus frame that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

func syntheticAudio(ctx context.Context, w sampleWriter) error {
	return pace(ctx, opusFrame, func() error {
		return w.WriteSample(media.Sample{Data: opusSilence, Duration: opusFrame})
	})
}

// syntheticVideo writes a small frame carrying a running counter. Peers only
// need RTP flowing to see the track; nothing is rendered.
func syntheticVideo(ctx context.Context, w sampleWriter) error {
	var seq uint32
	return pace(ctx, videoFrame, func() error {
		frame := make([]byte, 16)
		// Bit 0 clear marks a VP8 key frame.
		frame[0] = 0x10
		binary.BigEndian.PutUint32(frame[12:], seq)
		seq++
		return w.WriteSample(media.Sample{Data: frame, Duration: videoFrame})
	})
}
