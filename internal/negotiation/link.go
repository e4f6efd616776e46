package negotiation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

// Link is the negotiation state machine toward one remote peer. Every method
// runs on the orchestrator loop; blocking connection calls are pushed off it
// through suspend and come back as continuations.
type Link struct {
	Peer string

	o   *Orchestrator
	log *slog.Logger

	role  Role
	state State
	conn  Connection

	// remoteSet is true once the remote description is applied; candidates
	// are only applied directly from then on.
	remoteSet bool
	// remotePending guards against a second answer while the first is still
	// being applied.
	remotePending bool

	tracks   map[webrtc.RTPCodecType]string
	streamID string
	surfaced bool

	opened time.Time
}

func newLink(o *Orchestrator, peer string, role Role) *Link {
	return &Link{
		Peer:   peer,
		o:      o,
		log:    o.log.With("peer", peer),
		role:   role,
		state:  Idle,
		tracks: make(map[webrtc.RTPCodecType]string),
		opened: time.Now(),
	}
}

func (l *Link) Role() Role   { return l.role }
func (l *Link) State() State { return l.state }

func (l *Link) info() LinkInfo {
	return LinkInfo{Peer: l.Peer, Role: l.role, State: l.state, StreamID: l.streamID, Opened: l.opened}
}

// live reports whether a continuation started against conn may still act.
func (l *Link) live(conn Connection) bool {
	return l.state != Closed && l.conn == conn
}

func (l *Link) transition(next State) error {
	if !l.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, next)
	}
	l.log.Debug("link state", "from", l.state, "to", next, "role", l.role)
	l.state = next
	l.o.emit(Event{Kind: EventStateChanged, Peer: l.Peer, Role: l.role, State: next})
	return nil
}

// attach creates the connection object, adds the shared local tracks and
// routes its callbacks back onto the loop.
func (l *Link) attach() error {
	conn, err := l.o.cfg.NewConnection(l.Peer)
	if err != nil {
		return linkError("create connection", l.Peer, err)
	}

	for _, track := range l.o.capture.Tracks() {
		if err := conn.AddTrack(track); err != nil {
			conn.Close()
			return linkError("add track", l.Peer, err)
		}
	}

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		l.o.post(func() {
			if !l.live(conn) {
				return
			}
			l.o.send(signaling.Candidate(l.Peer, c))
		})
	})
	conn.OnTrack(func(rt RemoteTrack) {
		l.o.post(func() {
			if l.live(conn) {
				l.remoteTrack(rt)
			}
		})
	})
	conn.OnFailure(func(err error) {
		l.o.post(func() {
			if l.live(conn) {
				l.fail("connect", err)
			}
		})
	})

	l.conn = conn
	return nil
}

// startOffer runs Idle -> Offering -> AwaitingAnswer.
func (l *Link) startOffer() {
	if err := l.transition(Offering); err != nil {
		l.log.Warn("cannot offer", "err", err)
		return
	}

	conn := l.conn
	l.o.suspend(func() func() {
		offer, err := conn.CreateOffer()
		op := "create offer"
		if err == nil {
			op = "set local description"
			err = conn.SetLocalDescription(offer)
		}

		return func() {
			if !l.live(conn) {
				return
			}
			if err != nil {
				l.fail(op, err)
				return
			}
			l.o.send(signaling.Description(l.Peer, offer))
			l.transition(AwaitingAnswer)
		}
	})
}

// acceptOffer runs Idle -> Answering -> Connecting. The buffered candidates
// are applied between setting the remote description and answering.
func (l *Link) acceptOffer(offer webrtc.SessionDescription) {
	if err := l.transition(Answering); err != nil {
		l.log.Warn("cannot answer", "err", err)
		return
	}

	conn := l.conn
	l.o.suspend(func() func() {
		err := conn.SetRemoteDescription(offer)

		return func() {
			if !l.live(conn) {
				return
			}
			if err != nil {
				l.fail("set remote description", err)
				return
			}
			if !l.remoteApplied() {
				return
			}
			l.o.suspend(func() func() { return l.answer(conn) })
		}
	})
}

func (l *Link) answer(conn Connection) func() {
	answer, err := conn.CreateAnswer()
	op := "create answer"
	if err == nil {
		op = "set local description"
		err = conn.SetLocalDescription(answer)
	}

	return func() {
		if !l.live(conn) {
			return
		}
		if err != nil {
			l.fail(op, err)
			return
		}
		l.o.send(signaling.Description(l.Peer, answer))
		l.transition(Connecting)
		l.checkConnected()
	}
}

// acceptAnswer runs AwaitingAnswer -> Connecting.
func (l *Link) acceptAnswer(answer webrtc.SessionDescription) {
	if l.state != AwaitingAnswer || l.remotePending {
		l.log.Debug("unexpected answer ignored", "state", l.state)
		return
	}
	l.remotePending = true

	conn := l.conn
	l.o.suspend(func() func() {
		err := conn.SetRemoteDescription(answer)

		return func() {
			l.remotePending = false
			if !l.live(conn) {
				return
			}
			if err != nil {
				l.fail("set remote description", err)
				return
			}
			if !l.remoteApplied() {
				return
			}
			l.transition(Connecting)
			l.checkConnected()
		}
	})
}

// remoteApplied marks the remote description as set and drains the buffered
// candidates in arrival order. It reports false if that closed the link.
func (l *Link) remoteApplied() bool {
	l.remoteSet = true

	conn := l.conn
	n, err := l.o.buffer.Drain(l.Peer, conn.AddICECandidate)
	if err != nil {
		l.fail("add buffered candidate", err)
		return false
	}
	if n > 0 {
		l.log.Debug("buffered candidates applied", "count", n)
	}
	return true
}

// addRemoteCandidate applies c now if the remote description is in place,
// otherwise holds it.
func (l *Link) addRemoteCandidate(c webrtc.ICECandidateInit) {
	if !l.remoteSet {
		if l.o.buffer.Enqueue(l.Peer, c) {
			l.log.Warn("candidate buffer full, oldest dropped")
		}
		return
	}
	if err := l.conn.AddICECandidate(c); err != nil {
		l.fail("add candidate", err)
	}
}

func (l *Link) remoteTrack(rt RemoteTrack) {
	l.log.Debug("remote track", "kind", rt.Kind, "stream", rt.StreamID)
	l.tracks[rt.Kind] = rt.StreamID
	if l.streamID == "" {
		l.streamID = rt.StreamID
	}
	l.checkConnected()
}

// checkConnected completes the link once every required kind has a track.
func (l *Link) checkConnected() {
	if l.state != Connecting {
		return
	}
	for _, kind := range l.o.cfg.RequiredKinds {
		if _, ok := l.tracks[kind]; !ok {
			return
		}
	}
	if err := l.transition(Connected); err != nil {
		return
	}
	l.surfaced = true
	l.o.emit(Event{Kind: EventStreamAdded, Peer: l.Peer, Role: l.role, State: l.state, StreamID: l.streamID})
}

// yield resolves glare in the remote's favor: the in-flight offer and its
// connection object are dropped and the link starts over as Answerer.
func (l *Link) yield() error {
	l.log.Info("glare, yielding to remote offer")

	l.conn.Close()
	l.conn = nil
	l.remoteSet = false
	l.remotePending = false
	clear(l.tracks)
	l.streamID = ""

	if err := l.transition(Idle); err != nil {
		return err
	}
	l.role = Answerer
	return l.attach()
}

// close drives the link to Closed from any state, releasing the connection
// and buffered candidates and retracting a surfaced stream.
func (l *Link) close(reason error) {
	if l.state == Closed {
		return
	}
	l.state = Closed

	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			l.log.Debug("closing connection", "err", err)
		}
	}
	if n := l.o.buffer.Discard(l.Peer); n > 0 {
		l.log.Debug("buffered candidates discarded", "count", n)
	}

	if l.surfaced {
		l.surfaced = false
		l.o.emit(Event{Kind: EventStreamRemoved, Peer: l.Peer, Role: l.role, State: Closed, StreamID: l.streamID})
	}
	l.o.emit(Event{Kind: EventStateChanged, Peer: l.Peer, Role: l.role, State: Closed})
	l.o.emit(Event{Kind: EventLinkClosed, Peer: l.Peer, Role: l.role, State: Closed, Err: reason})
}

func (l *Link) fail(op string, err error) {
	lerr := linkError(op, l.Peer, err)
	l.log.Warn("negotiation failed", "op", op, "err", err)
	l.close(lerr)
}
