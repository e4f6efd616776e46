package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type recorder struct {
	mu      sync.Mutex
	samples []media.Sample
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) WriteSample(s media.Sample) error {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *recorder) wait(t *testing.T, n int) []media.Sample {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		r.mu.Lock()
		if len(r.samples) >= n {
			out := append([]media.Sample(nil), r.samples[:n]...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.notify:
		case <-timeout:
			t.Fatalf("got fewer than %d samples", n)
		}
	}
}

// writeIVF writes a VP8 IVF file at 100 frames per second.
func writeIVF(t *testing.T, frames ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("DKIF")
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // version
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // header size
	buf.WriteString("VP80")
	binary.Write(&buf, binary.LittleEndian, uint16(64)) // width
	binary.Write(&buf, binary.LittleEndian, uint16(48)) // height
	binary.Write(&buf, binary.LittleEndian, uint32(100))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(frames)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	for i, f := range frames {
		binary.Write(&buf, binary.LittleEndian, uint32(len(f)))
		binary.Write(&buf, binary.LittleEndian, uint64(i))
		buf.Write(f)
	}

	path := filepath.Join(t.TempDir(), "clip.ivf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAcquire_SyntheticTracks(t *testing.T) {
	c, err := Acquire(context.Background(), Options{StreamID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	tracks := c.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks", len(tracks))
	}
	kinds := map[webrtc.RTPCodecType]bool{}
	for _, tr := range tracks {
		kinds[tr.Kind()] = true
		if tr.StreamID() != "s1" {
			t.Fatalf("track %s in stream %q", tr.ID(), tr.StreamID())
		}
	}
	if !kinds[webrtc.RTPCodecTypeAudio] || !kinds[webrtc.RTPCodecTypeVideo] {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestAcquire_AudioOnly(t *testing.T) {
	c, err := Acquire(context.Background(), Options{AudioOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if len(c.Tracks()) != 1 || c.Tracks()[0].Kind() != webrtc.RTPCodecTypeAudio {
		t.Fatalf("tracks = %v", c.Tracks())
	}
	if !strings.HasPrefix(c.StreamID, "meshroom-") {
		t.Fatalf("stream id %q", c.StreamID)
	}
}

func TestAcquire_CloseIsIdempotent(t *testing.T) {
	c, err := Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		c.Close()
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestSyntheticVideo_KeyFramesWithCounter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newRecorder()
	go syntheticVideo(ctx, r)
	got := r.wait(t, 2)
	for i, s := range got {
		if s.Data[0]&0x01 != 0 {
			t.Fatalf("frame %d is not a key frame", i)
		}
		if binary.BigEndian.Uint32(s.Data[12:]) != uint32(i) {
			t.Fatalf("frame %d counter = %d", i, binary.BigEndian.Uint32(s.Data[12:]))
		}
		if s.Duration != videoFrame {
			t.Fatalf("duration %v", s.Duration)
		}
	}
}

func TestIVFPlayer_LoopsAtEnd(t *testing.T) {
	path := writeIVF(t, []byte("frame-a"), []byte("frame-b"))
	if mime, err := ivfCodec(path); err != nil || mime != webrtc.MimeTypeVP8 {
		t.Fatalf("ivfCodec = %q, %v", mime, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecorder()
	go ivfPlayer(path)(ctx, r)

	got := r.wait(t, 3)
	want := []string{"frame-a", "frame-b", "frame-a"}
	for i, s := range got {
		if string(s.Data) != want[i] {
			t.Fatalf("sample %d = %q, want %q", i, s.Data, want[i])
		}
		if s.Duration != 10*time.Millisecond {
			t.Fatalf("duration %v", s.Duration)
		}
	}
}

func TestAcquire_VideoFile(t *testing.T) {
	path := writeIVF(t, []byte("frame"))
	c, err := Acquire(context.Background(), Options{VideoFile: path})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	for _, tr := range c.Tracks() {
		if tr.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		codec := tr.(*webrtc.TrackLocalStaticSample).Codec()
		if codec.MimeType != webrtc.MimeTypeVP8 {
			t.Fatalf("video codec %q", codec.MimeType)
		}
		return
	}
	t.Fatal("no video track")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.ivf")
	os.WriteFile(empty, nil, 0o644)
	wrongExt := filepath.Join(dir, "clip.mp4")
	os.WriteFile(wrongExt, []byte("x"), 0o644)
	good := writeIVF(t, []byte("frame"))

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"synthetic", Options{}, ""},
		{"good file", Options{VideoFile: good}, ""},
		{"missing", Options{AudioFile: filepath.Join(dir, "nope.ogg")}, "does not exist"},
		{"directory", Options{VideoFile: dir + "/"}, "is a directory"},
		{"empty", Options{VideoFile: empty}, "file is empty"},
		{"extension", Options{VideoFile: wrongExt}, "unsupported extension"},
		{"audio only with video", Options{AudioOnly: true, VideoFile: good}, "audio-only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.opts)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(Options{VideoFile: "/nope/a.ivf", AudioFile: "/nope/b.ogg"})
	if err == nil || strings.Count(err.Error(), "does not exist") != 2 {
		t.Fatalf("error = %v", err)
	}
}
