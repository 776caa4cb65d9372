package main

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/IvanchikIvanov/newwave/game"
)

// Message kinds
const (
	KindState = "STATE"
	KindInput = "INPUT"
)

// Envelope is the routing header every frame starts with. Seq increases
// monotonically per sender; 0 means the sender does not sequence its frames.
type Envelope struct {
	Kind string `msgpack:"k" json:"kind"`
	Seq  uint64 `msgpack:"q,omitempty" json:"seq,omitempty"`
}

// frame is an Envelope carrying its payload.
type frame[T any] struct {
	Kind    string `msgpack:"k" json:"kind"`
	Seq     uint64 `msgpack:"q,omitempty" json:"seq,omitempty"`
	Payload T      `msgpack:"p" json:"payload"`
}

// Codec turns frames into websocket messages.
type Codec interface {
	Name() string
	MessageType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) MessageType() int { return websocket.BinaryMessage }
func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) MessageType() int { return websocket.TextMessage }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CodecByName returns the codec for a -wire flag value.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return msgpackCodec{}, nil
	case "json":
		return jsonCodec{}, nil
	}
	return nil, fmt.Errorf("unknown wire codec %q", name)
}

// CodecForMessage picks the codec matching a received websocket frame type,
// so either side may speak either encoding.
func CodecForMessage(msgType int) Codec {
	if msgType == websocket.TextMessage {
		return jsonCodec{}
	}
	return msgpackCodec{}
}

// Encode builds a complete frame.
func Encode[T any](c Codec, kind string, seq uint64, payload T) ([]byte, error) {
	if kind == "" {
		return nil, fmt.Errorf("encode: empty kind")
	}
	return c.Marshal(frame[T]{Kind: kind, Seq: seq, Payload: payload})
}

// DecodeEnvelope reads only the header of a frame.
func DecodeEnvelope(c Codec, b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode: empty frame")
	}
	var e Envelope
	if err := c.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Kind == "" {
		return Envelope{}, fmt.Errorf("decode: frame without kind")
	}
	return e, nil
}

// DecodePayload reads the payload of a frame as T.
func DecodePayload[T any](c Codec, b []byte) (T, error) {
	var f frame[T]
	if err := c.Unmarshal(b, &f); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %T payload: %w", zero, err)
	}
	return f.Payload, nil
}

// EncodeState and EncodeInput are the two frames the protocol carries.
func EncodeState(c Codec, seq uint64, w game.WorldState) ([]byte, error) {
	return Encode(c, KindState, seq, w)
}

func EncodeInput(c Codec, seq uint64, in game.Intent) ([]byte, error) {
	return Encode(c, KindInput, seq, in)
}

// seqGate drops frames that arrive out of order. A zero sequence is always
// let through so unsequenced peers keep last-write-wins behaviour.
type seqGate struct {
	last uint64
}

func (g *seqGate) Accept(seq uint64) bool {
	if seq == 0 {
		return true
	}
	if seq <= g.last {
		return false
	}
	g.last = seq
	return true
}

func (g *seqGate) Reset() { g.last = 0 }
