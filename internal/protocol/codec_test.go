package protocol

import (
	"testing"

	"github.com/gorilla/websocket"
)

type candidatePayload struct {
	Type      string `json:"type"`
	Candidate struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid,omitempty"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	} `json:"candidate"`
}

func TestCodecs_ForwardOpaqueDataAcrossCodecs(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	var in candidatePayload
	in.Type = "candidate"
	in.Candidate.Candidate = "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host"
	in.Candidate.SDPMid = &mid
	in.Candidate.SDPMLineIndex = &idx

	// A JSON client sends, the relay decodes into an opaque message and
	// re-encodes it for a msgpack receiver.
	sent, err := JSON.Marshal(&Message{Type: TypeData, PeerID: "b", Data: in})
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	var atRelay Message
	if err := JSON.Unmarshal(sent, &atRelay); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	atRelay.PeerID = "a"

	forwarded, err := Msgpack.Marshal(&atRelay)
	if err != nil {
		t.Fatalf("marshal msgpack: %v", err)
	}
	var received Message
	if err := Msgpack.Unmarshal(forwarded, &received); err != nil {
		t.Fatalf("unmarshal msgpack: %v", err)
	}

	if received.Type != TypeData || received.PeerID != "a" {
		t.Fatalf("envelope = %+v", received)
	}

	var out candidatePayload
	if err := DecodeData(&received, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.Type != "candidate" || out.Candidate.Candidate != in.Candidate.Candidate {
		t.Fatalf("payload = %+v", out)
	}
	if out.Candidate.SDPMid == nil || *out.Candidate.SDPMid != "0" {
		t.Fatalf("sdpMid lost: %+v", out.Candidate)
	}
	if out.Candidate.SDPMLineIndex == nil || *out.Candidate.SDPMLineIndex != 1 {
		t.Fatalf("sdpMLineIndex lost: %+v", out.Candidate)
	}
}

func TestDecodeData_RequiresPayload(t *testing.T) {
	var v candidatePayload
	if err := DecodeData(&Message{Type: TypeData}, &v); err == nil {
		t.Fatal("expected error for message without data")
	}
}

func TestParseCodec(t *testing.T) {
	cases := map[string]Codec{"": JSON, "json": JSON, " MsgPack ": Msgpack}
	for name, want := range cases {
		got, err := ParseCodec(name)
		if err != nil {
			t.Fatalf("ParseCodec(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseCodec(%q) = %s, want %s", name, got.Name(), want.Name())
		}
	}
	if _, err := ParseCodec("cbor"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestCodecFor_DefaultsToJSON(t *testing.T) {
	if CodecFor("") != JSON {
		t.Fatal("no subprotocol should select json")
	}
	if got := CodecFor(SubprotocolMsgpack); got != Msgpack || got.FrameType() != websocket.BinaryMessage {
		t.Fatalf("msgpack subprotocol selected %s", got.Name())
	}
}
