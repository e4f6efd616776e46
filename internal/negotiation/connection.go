package negotiation

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/protocol"
)

// Connection is the media connection object a Link drives through the
// offer/answer exchange. The rtc package backs it with a pion PeerConnection.
//
// Description and candidate methods may block; Links only call them off the
// event loop. Callbacks may fire from any goroutine.
type Connection interface {
	AddTrack(track webrtc.TrackLocal) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error

	// OnICECandidate fires for each locally gathered candidate.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack fires once per remote track.
	OnTrack(func(RemoteTrack))
	// OnFailure fires when the connection fails for good (ICE or DTLS).
	OnFailure(func(error))

	Close() error
}

// RemoteTrack describes a media track received from the remote peer.
type RemoteTrack struct {
	StreamID string
	TrackID  string
	Kind     webrtc.RTPCodecType
}

// ConnectionFactory creates a fresh connection object for the link to peer.
type ConnectionFactory func(peer string) (Connection, error)

// Capture is the local media shared read-only by every link.
type Capture interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// CaptureSource acquires local media. It is called once, before joining.
type CaptureSource func(ctx context.Context) (Capture, error)

// Transport is the client end of the relay channel.
type Transport interface {
	Send(msg *protocol.Message) error
	Incoming() <-chan *protocol.Message
}
