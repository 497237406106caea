package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/shamaton/msgpack/v2"
)

// Websocket subprotocols. A client that asks for none gets JSON.
const (
	SubprotocolJSON    = "callrelay.json"
	SubprotocolMsgpack = "callrelay.msgpack"
)

var ErrUnsupportedSubprotocol = errors.New("unsupported subprotocol")

// Codec encodes frames for one subprotocol.
type Codec interface {
	Subprotocol() string
	// MessageType is the websocket frame type the codec writes and expects.
	MessageType() websocket.MessageType
	Marshal(f Frame) ([]byte, error)
	Unmarshal(b []byte) (Frame, error)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists the subprotocols the server accepts, in preference order.
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgpack}
}

func CodecFor(subprotocol string) (Codec, error) {
	switch subprotocol {
	case "", SubprotocolJSON:
		return JSON, nil
	case SubprotocolMsgpack:
		return Msgpack, nil
	}
	return nil, fmt.Errorf("signaling.CodecFor: %w %q", ErrUnsupportedSubprotocol, subprotocol)
}

type jsonCodec struct{}

func (jsonCodec) Subprotocol() string                { return SubprotocolJSON }
func (jsonCodec) MessageType() websocket.MessageType { return websocket.MessageText }

func (jsonCodec) Marshal(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("signaling.jsonCodec: failed to marshal %q: %w", f.Event, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("signaling.jsonCodec: failed to unmarshal frame: %w", err)
	}
	return f, nil
}

// msgpackCodec encodes frames as msgpack maps so field names match the JSON wire.
type msgpackCodec struct{}

func (msgpackCodec) Subprotocol() string                { return SubprotocolMsgpack }
func (msgpackCodec) MessageType() websocket.MessageType { return websocket.MessageBinary }

func (msgpackCodec) Marshal(f Frame) ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("signaling.msgpackCodec: failed to marshal %q: %w", f.Event, err)
	}
	return b, nil
}

func (msgpackCodec) Unmarshal(b []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("signaling.msgpackCodec: failed to unmarshal frame: %w", err)
	}
	// msgpack decodes objects as map[any]any, which a JSON peer cannot receive.
	f.Data = normalize(f.Data)
	return f, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	}
	return v
}
