package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/protocol"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

// Config wires an Orchestrator to its collaborators.
type Config struct {
	// Room to join; empty joins the relay's default room.
	Room string

	Transport     Transport
	NewConnection ConnectionFactory
	Capture       CaptureSource

	// RequiredKinds must all have a remote track before a link counts as
	// Connected. Defaults to audio and video.
	RequiredKinds []webrtc.RTPCodecType

	// CandidateBufferSize caps candidates held per peer.
	CandidateBufferSize int

	Logger *slog.Logger

	// OnEvent observes link lifecycle. It is called from the loop goroutine
	// and must not block.
	OnEvent func(Event)
}

// Orchestrator owns the links of one participant and maps relay messages onto
// them. All of its state is confined to the goroutine running Run.
type Orchestrator struct {
	cfg Config
	log *slog.Logger

	self    string
	links   map[string]*Link
	buffer  *CandidateBuffer
	capture Capture

	dispatch map[string]func(*protocol.Message)

	inbox   chan func()
	stopped chan struct{}
	running chan struct{}
}

// New validates cfg and builds an Orchestrator. Call Run to start it.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Transport == nil || cfg.NewConnection == nil || cfg.Capture == nil {
		return nil, errors.New("negotiation: transport, connection factory and capture are required")
	}
	if len(cfg.RequiredKinds) == 0 {
		cfg.RequiredKinds = []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:     cfg,
		log:     cfg.Logger,
		links:   make(map[string]*Link),
		buffer:  NewCandidateBuffer(cfg.CandidateBufferSize),
		inbox:   make(chan func(), 64),
		stopped: make(chan struct{}),
		running: make(chan struct{}),
	}
	o.dispatch = map[string]func(*protocol.Message){
		protocol.TypeWelcome:          o.handleWelcome,
		protocol.TypeReady:            o.handleReady,
		protocol.TypeData:             o.handleData,
		protocol.TypeUserDisconnected: o.handleUserDisconnected,
		protocol.TypeError:            o.handleRelayError,
	}
	return o, nil
}

// Run acquires local media, joins the room and processes relay messages until
// ctx is done or the relay goes away. Either way every link is closed and a
// leave is sent before the capture is released.
//
// A capture failure is returned wrapped in ErrMediaUnavailable and no join is
// attempted. Losing the relay returns ErrRelayClosed.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)

	capture, err := o.cfg.Capture(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
	}
	o.capture = capture
	o.log.Debug("local media ready", "tracks", len(capture.Tracks()))

	if err := o.cfg.Transport.Send(signaling.Join(o.cfg.Room)); err != nil {
		o.release()
		return fmt.Errorf("join room: %w", err)
	}
	close(o.running)

	incoming := o.cfg.Transport.Incoming()
	for {
		select {
		case <-ctx.Done():
			o.teardown(true)
			return nil

		case msg, ok := <-incoming:
			if !ok {
				o.teardown(false)
				return ErrRelayClosed
			}
			o.handle(msg)

		case fn := <-o.inbox:
			fn()
		}
	}
}

// Snapshot returns the current links sorted by peer-id.
func (o *Orchestrator) Snapshot(ctx context.Context) ([]LinkInfo, error) {
	select {
	case <-o.running:
	case <-o.stopped:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result := make(chan []LinkInfo, 1)
	fn := func() {
		infos := make([]LinkInfo, 0, len(o.links))
		for _, peer := range slices.Sorted(maps.Keys(o.links)) {
			infos = append(infos, o.links[peer].info())
		}
		result <- infos
	}

	select {
	case o.inbox <- fn:
	case <-o.stopped:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case infos := <-result:
		return infos, nil
	case <-o.stopped:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) handle(msg *protocol.Message) {
	h, ok := o.dispatch[msg.Type]
	if !ok {
		o.log.Debug("ignoring relay message", "type", msg.Type)
		return
	}
	h(msg)
}

func (o *Orchestrator) handleWelcome(msg *protocol.Message) {
	o.self = msg.PeerID
	o.log.Info("connected to relay", "self", o.self)
	o.emit(Event{Kind: EventJoined, Peer: o.self})
}

// handleReady makes us the offering side toward a new member.
func (o *Orchestrator) handleReady(msg *protocol.Message) {
	peer := msg.PeerID
	if peer == "" || peer == o.self {
		return
	}
	if l, ok := o.links[peer]; ok && l.state != Closed {
		o.log.Debug("duplicate ready ignored", "peer", peer, "state", l.state)
		return
	}

	l, ok := o.open(peer, Offerer)
	if !ok {
		return
	}
	l.startOffer()
}

func (o *Orchestrator) handleData(msg *protocol.Message) {
	peer := msg.PeerID
	if peer == "" {
		o.log.Warn("data without sender dropped")
		return
	}

	p, err := signaling.DecodeSignal(msg)
	if err != nil {
		o.log.Warn("bad signal dropped", "peer", peer, "err", err)
		return
	}

	switch p.Type {
	case signaling.SignalOffer:
		o.handleOffer(peer, p.Description())
	case signaling.SignalAnswer:
		o.handleAnswer(peer, p.Description())
	case signaling.SignalCandidate:
		o.handleCandidate(peer, *p.Candidate)
	}
}

func (o *Orchestrator) handleOffer(peer string, offer webrtc.SessionDescription) {
	l, ok := o.links[peer]

	switch {
	case !ok || l.state == Closed:
		if l, ok = o.open(peer, Answerer); !ok {
			return
		}

	case l.state == Offering || l.state == AwaitingAnswer:
		// Glare: the smaller peer-id gives way.
		if o.self >= peer {
			o.log.Debug("glare, keeping our offer", "peer", peer)
			return
		}
		if err := l.yield(); err != nil {
			l.fail("yield", err)
			return
		}

	case l.state != Idle:
		o.log.Debug("offer ignored, already negotiating", "peer", peer, "state", l.state)
		return
	}

	l.acceptOffer(offer)
}

func (o *Orchestrator) handleAnswer(peer string, answer webrtc.SessionDescription) {
	l, ok := o.links[peer]
	if !ok || l.state == Closed {
		o.log.Debug("answer dropped", "peer", peer, "err", ErrUnknownPeer)
		return
	}
	l.acceptAnswer(answer)
}

// handleCandidate applies or buffers c. Candidates may outrun the offer that
// creates their link, so an unknown sender is buffered too.
func (o *Orchestrator) handleCandidate(peer string, c webrtc.ICECandidateInit) {
	l, ok := o.links[peer]
	if !ok {
		if o.buffer.Enqueue(peer, c) {
			o.log.Warn("candidate buffer full, oldest dropped", "peer", peer)
		}
		return
	}
	if l.state == Closed {
		return
	}
	l.addRemoteCandidate(c)
}

func (o *Orchestrator) handleUserDisconnected(msg *protocol.Message) {
	peer := msg.PeerID
	if l, ok := o.links[peer]; ok {
		l.close(ErrPeerLeft)
		delete(o.links, peer)
	}
	o.buffer.Discard(peer)
	o.log.Info("peer left", "peer", peer)
}

func (o *Orchestrator) handleRelayError(msg *protocol.Message) {
	o.log.Warn("relay reported an error", "err", msg.Error)
	o.emit(Event{Kind: EventRelayError, Err: errors.New(msg.Error)})
}

// open creates a link to peer, replacing a closed one. It reports false if
// no connection object could be made; the link is then left Closed.
func (o *Orchestrator) open(peer string, role Role) (*Link, bool) {
	l := newLink(o, peer, role)
	o.links[peer] = l
	o.emit(Event{Kind: EventLinkOpened, Peer: peer, Role: role, State: Idle})

	if err := l.attach(); err != nil {
		o.log.Warn("cannot open link", "peer", peer, "err", err)
		l.close(err)
		return l, false
	}
	return l, true
}

// suspend runs work off the loop; the continuation it returns runs back on
// the loop.
func (o *Orchestrator) suspend(work func() func()) {
	go func() {
		o.post(work())
	}()
}

// post queues fn for the loop. It is dropped once the loop has stopped.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.inbox <- fn:
	case <-o.stopped:
	}
}

func (o *Orchestrator) send(msg *protocol.Message) {
	if err := o.cfg.Transport.Send(msg); err != nil {
		o.log.Debug("send failed", "type", msg.Type, "err", err)
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.cfg.OnEvent == nil {
		return
	}
	ev.At = time.Now()
	o.cfg.OnEvent(ev)
}

// teardown closes every link before announcing the departure, then releases
// the capture.
func (o *Orchestrator) teardown(sendLeave bool) {
	for _, peer := range slices.Sorted(maps.Keys(o.links)) {
		o.links[peer].close(ErrLocalTeardown)
	}
	clear(o.links)
	for _, peer := range o.buffer.Peers() {
		o.buffer.Discard(peer)
	}

	if sendLeave {
		o.send(signaling.Leave())
	}
	o.release()
}

func (o *Orchestrator) release() {
	if o.capture == nil {
		return
	}
	if err := o.capture.Close(); err != nil {
		o.log.Warn("releasing local media", "err", err)
	}
	o.capture = nil
}
