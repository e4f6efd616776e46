package signaling

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/protocol"
)

// Negotiation payload types carried in the data field of a "data" message.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalPayload represents the WebRTC signaling data (SDP offer/answer or ICE
// candidate). Field names follow the browser's RTCSessionDescription and
// RTCIceCandidate JSON so web participants interoperate.
type SignalPayload struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Description returns the payload as a session description.
func (p *SignalPayload) Description() webrtc.SessionDescription {
	sdpType := webrtc.SDPTypeOffer
	if p.Type == SignalAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: p.SDP}
}

// DecodeSignal extracts and validates the negotiation payload of a data
// message.
func DecodeSignal(msg *protocol.Message) (*SignalPayload, error) {
	var p SignalPayload
	if err := protocol.DecodeData(msg, &p); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}

	switch p.Type {
	case SignalOffer, SignalAnswer:
		if p.SDP == "" {
			return nil, fmt.Errorf("decode signal: %s without sdp", p.Type)
		}
	case SignalCandidate:
		if p.Candidate == nil {
			return nil, fmt.Errorf("decode signal: candidate without body")
		}
	default:
		return nil, fmt.Errorf("decode signal: unknown type %q", p.Type)
	}
	return &p, nil
}

// Join asks the relay to place us in room; empty means the default room.
func Join(room string) *protocol.Message {
	return &protocol.Message{Type: protocol.TypeJoin, Room: room}
}

// Leave asks the relay to drop our membership.
func Leave() *protocol.Message {
	return &protocol.Message{Type: protocol.TypeLeave}
}

// Description addresses an offer or answer to peer.
func Description(peer string, desc webrtc.SessionDescription) *protocol.Message {
	return &protocol.Message{
		Type:   protocol.TypeData,
		PeerID: peer,
		Data:   &SignalPayload{Type: desc.Type.String(), SDP: desc.SDP},
	}
}

// Candidate addresses a trickled ICE candidate to peer.
func Candidate(peer string, c webrtc.ICECandidateInit) *protocol.Message {
	return &protocol.Message{
		Type:   protocol.TypeData,
		PeerID: peer,
		Data:   &SignalPayload{Type: SignalCandidate, Candidate: &c},
	}
}
