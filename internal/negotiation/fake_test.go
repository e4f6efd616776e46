package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/protocol"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

var errNoRemote = errors.New("remote description not set")

// fakeConn records what a Link does to its connection object. Like pion, it
// rejects candidates before the remote description.
type fakeConn struct {
	peer string

	mu          sync.Mutex
	tracks      []webrtc.TrackLocal
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	closed      bool
	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(RemoteTrack)
	onFailure   func(error)

	// offerGate, when set, holds CreateOffer until closed.
	offerGate chan struct{}
	// remoteErr fails SetRemoteDescription.
	remoteErr error
	// media fires audio and video tracks named after mediaStream once both
	// descriptions are in place.
	media       bool
	mediaStream string
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, track)
	return nil
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	if c.offerGate != nil {
		<-c.offerGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return webrtc.SessionDescription{}, errors.New("connection closed")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-to-" + c.peer}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return webrtc.SessionDescription{}, errNoRemote
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + c.peer}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	c.local = &desc
	c.mu.Unlock()
	c.maybeMedia()
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if c.remoteErr != nil {
		return c.remoteErr
	}
	c.mu.Lock()
	c.remote = &desc
	c.mu.Unlock()
	c.maybeMedia()
	return nil
}

func (c *fakeConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errNoRemote
	}
	c.candidates = append(c.candidates, cand)
	return nil
}

func (c *fakeConn) OnICECandidate(f func(webrtc.ICECandidateInit)) { c.onCandidate = f }
func (c *fakeConn) OnTrack(f func(RemoteTrack))                    { c.onTrack = f }
func (c *fakeConn) OnFailure(f func(error))                        { c.onFailure = f }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) maybeMedia() {
	c.mu.Lock()
	ready := c.media && c.local != nil && c.remote != nil && !c.closed
	c.mu.Unlock()
	if !ready {
		return
	}
	go func() {
		c.onTrack(RemoteTrack{StreamID: c.mediaStream, TrackID: "audio", Kind: webrtc.RTPCodecTypeAudio})
		c.onTrack(RemoteTrack{StreamID: c.mediaStream, TrackID: "video", Kind: webrtc.RTPCodecTypeVideo})
	}()
}

func (c *fakeConn) snapshot() (remote *webrtc.SessionDescription, cands []webrtc.ICECandidateInit, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote, append([]webrtc.ICECandidateInit(nil), c.candidates...), c.closed
}

func (c *fakeConn) trackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracks)
}

// sendTrack simulates remote media arriving.
func (c *fakeConn) sendTrack(kind webrtc.RTPCodecType, stream string) {
	c.onTrack(RemoteTrack{StreamID: stream, TrackID: kind.String(), Kind: kind})
}

type fakeCapture struct {
	tracks []webrtc.TrackLocal
	closed chan struct{}
	once   sync.Once
}

func newFakeCapture(t *testing.T) *fakeCapture {
	t.Helper()
	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "local")
	if err != nil {
		t.Fatal(err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "local")
	if err != nil {
		t.Fatal(err)
	}
	return &fakeCapture{tracks: []webrtc.TrackLocal{audio, video}, closed: make(chan struct{})}
}

func (c *fakeCapture) Tracks() []webrtc.TrackLocal { return c.tracks }

func (c *fakeCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeTransport struct {
	in  chan *protocol.Message
	out chan *protocol.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:  make(chan *protocol.Message, 64),
		out: make(chan *protocol.Message, 256),
	}
}

func (t *fakeTransport) Send(msg *protocol.Message) error {
	t.out <- msg
	return nil
}

func (t *fakeTransport) Incoming() <-chan *protocol.Message { return t.in }

// harness runs one Orchestrator against fakes.
type harness struct {
	t       *testing.T
	o       *Orchestrator
	tr      *fakeTransport
	capture *fakeCapture
	conns   chan *fakeConn
	events  chan Event
	cancel  context.CancelFunc
	done    chan error

	// configure adjusts each connection as it is created.
	configure func(*fakeConn)
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		tr:      newFakeTransport(),
		capture: newFakeCapture(t),
		conns:   make(chan *fakeConn, 16),
		events:  make(chan Event, 512),
		done:    make(chan error, 1),
	}

	cfg := Config{
		Transport: h.tr,
		NewConnection: func(peer string) (Connection, error) {
			c := &fakeConn{peer: peer}
			if h.configure != nil {
				h.configure(c)
			}
			h.conns <- c
			return c, nil
		},
		Capture: func(context.Context) (Capture, error) {
			return h.capture, nil
		},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnEvent: func(ev Event) { h.events <- ev },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	o, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.o = o
	return h
}

func (h *harness) start(self string) {
	h.t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.o.Run(ctx) }()
	h.t.Cleanup(func() {
		cancel()
		select {
		case <-h.o.stopped:
		case <-time.After(2 * time.Second):
		}
	})

	if msg := h.sent(); msg.Type != protocol.TypeJoin {
		h.t.Fatalf("first message = %+v, want join", msg)
	}
	h.deliver(&protocol.Message{Type: protocol.TypeWelcome, PeerID: self})
}

func (h *harness) deliver(msg *protocol.Message) {
	h.tr.in <- msg
}

func (h *harness) deliverSignal(from string, msg *protocol.Message) {
	// What the relay does: stamp the sender and forward the payload.
	h.deliver(&protocol.Message{Type: protocol.TypeData, PeerID: from, Data: msg.Data})
}

func (h *harness) sent() *protocol.Message {
	h.t.Helper()
	select {
	case msg := <-h.tr.out:
		return msg
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for outgoing message")
		return nil
	}
}

// sentSignal waits for the next outgoing negotiation payload, skipping
// trickled candidates unless they are wanted.
func (h *harness) sentSignal(want string) (*protocol.Message, *signaling.SignalPayload) {
	h.t.Helper()
	for {
		msg := h.sent()
		if msg.Type != protocol.TypeData {
			h.t.Fatalf("sent %+v, want data", msg)
		}
		p, err := signaling.DecodeSignal(msg)
		if err != nil {
			h.t.Fatalf("decode: %v", err)
		}
		if p.Type == signaling.SignalCandidate && want != signaling.SignalCandidate {
			continue
		}
		if p.Type != want {
			h.t.Fatalf("sent %s, want %s", p.Type, want)
		}
		return msg, p
	}
}

func (h *harness) conn() *fakeConn {
	h.t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a connection object")
		return nil
	}
}

// waitEvent returns the first event matching pred, failing after a timeout.
func (h *harness) waitEvent(desc string, pred func(Event) bool) Event {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if pred(ev) {
				return ev
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", desc)
			return Event{}
		}
	}
}

func (h *harness) waitState(peer string, state State) {
	h.t.Helper()
	h.waitEvent(fmt.Sprintf("%s -> %s", peer, state), func(ev Event) bool {
		return ev.Kind == EventStateChanged && ev.Peer == peer && ev.State == state
	})
}

// onLoop runs fn on the orchestrator goroutine and waits for it.
func (h *harness) onLoop(fn func()) {
	h.t.Helper()
	done := make(chan struct{})
	h.o.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("loop did not run")
	}
}

func (h *harness) link(peer string) (LinkInfo, bool) {
	h.t.Helper()
	infos, err := h.o.Snapshot(context.Background())
	if err != nil {
		h.t.Fatalf("snapshot: %v", err)
	}
	for _, info := range infos {
		if info.Peer == peer {
			return info, true
		}
	}
	return LinkInfo{}, false
}

func (h *harness) expectNothingSent() {
	h.t.Helper()
	// A snapshot round trip drains everything already queued on the loop.
	h.o.Snapshot(context.Background())
	select {
	case msg := <-h.tr.out:
		h.t.Fatalf("unexpected outgoing message %+v", msg)
	default:
	}
}

func candidate(n int) webrtc.ICECandidateInit {
	mid := "0"
	idx := uint16(0)
	return webrtc.ICECandidateInit{
		Candidate:     fmt.Sprintf("candidate:%d 1 udp 2130706431 10.0.0.%d 5000 typ host", n, n),
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}

func offerFrom(peer string) *protocol.Message {
	return signaling.Description("", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + peer})
}

func answerFrom(peer string) *protocol.Message {
	return signaling.Description("", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-" + peer})
}
