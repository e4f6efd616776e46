package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// WebSocket subprotocols advertised by the relay. A connection that offers
// none of them (a browser, for instance) talks JSON.
const (
	SubprotocolJSON    = "meshroom.json"
	SubprotocolMsgpack = "meshroom.msgpack"
)

// Codec turns messages into WebSocket frames and back.
type Codec interface {
	Name() string
	Subprotocol() string
	// FrameType is the websocket message type frames are written with.
	FrameType() int
	Marshal(msg *Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists every subprotocol the relay accepts, preferred first.
func Subprotocols() []string {
	return []string{SubprotocolMsgpack, SubprotocolJSON}
}

// CodecFor returns the codec for a negotiated subprotocol.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

// ParseCodec resolves a user supplied codec name.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q (want json or msgpack)", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) Subprotocol() string { return SubprotocolJSON }
func (jsonCodec) FrameType() int      { return websocket.TextMessage }

func (jsonCodec) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg *Message) error {
	return json.Unmarshal(data, msg)
}

// msgpackCodec reuses the json struct tags so both codecs agree on field
// names, including those of third-party payload types.
type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return "msgpack" }
func (msgpackCodec) Subprotocol() string { return SubprotocolMsgpack }
func (msgpackCodec) FrameType() int      { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, msg *Message) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(msg)
}

// DecodeData converts the opaque Data of a received message into v.
//
// Data arrives as generic maps from either codec, so it is normalized through
// JSON before landing in the concrete type.
func DecodeData(msg *Message, v any) error {
	if msg.Data == nil {
		return fmt.Errorf("message %q has no data", msg.Type)
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
