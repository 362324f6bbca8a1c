package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKind is returned by Decode for an envelope with an unknown type.
var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the wire form of an event.
type Envelope struct {
	ID    int64           `json:"id,omitempty"`
	Type  Kind            `json:"type"`
	Radio string          `json:"radioId,omitempty"`
	Time  time.Time       `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type radioStateData struct {
	State    RadioState `json:"state"`
	Previous RadioState `json:"previous,omitempty"`
}

type linkStateData struct {
	State  LinkState `json:"state"`
	Detail string    `json:"detail,omitempty"`
}

type connectivityData struct {
	Interface string `json:"interface"`
	Type      string `json:"type,omitempty"`
	Connected bool   `json:"connected"`
}

type handshakeStateData struct {
	State     HandshakeState `json:"state"`
	ErrorCode int            `json:"errorCode"`
}

type handshakeConnectionData struct {
	Connected bool `json:"connected"`
}

type reconnectingData struct {
	Attempt int `json:"attempt"`
}

// Encode wraps ev in an envelope carrying the given ID.
func Encode(id int64, ev Event) (Envelope, error) {
	var data any
	switch e := ev.(type) {
	case RadioStateChanged:
		data = radioStateData{State: e.State, Previous: e.Previous}
	case LinkStateChanged:
		data = linkStateData{State: e.State, Detail: e.Detail}
	case ConnectivityChanged:
		data = connectivityData{Interface: e.Interface, Type: e.Type, Connected: e.Connected}
	case HandshakeStateChanged:
		data = handshakeStateData{State: e.State, ErrorCode: e.ErrorCode}
	case HandshakeConnectionChanged:
		data = handshakeConnectionData{Connected: e.Connected}
	case Reconnecting:
		data = reconnectingData{Attempt: e.Attempt}
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	return Envelope{
		ID:    id,
		Type:  ev.Kind(),
		Radio: ev.RadioID(),
		Time:  ev.Timestamp(),
		Data:  raw,
	}, nil
}

// Decode rebuilds the event carried by env.
func Decode(env Envelope) (Event, error) {
	base := baseEvent{kind: env.Type, radioID: env.Radio, timestamp: env.Time}

	switch env.Type {
	case KindRadioState:
		var d radioStateData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return RadioStateChanged{baseEvent: base, State: d.State, Previous: d.Previous}, nil
	case KindLinkState:
		var d linkStateData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return LinkStateChanged{baseEvent: base, State: d.State, Detail: d.Detail}, nil
	case KindConnectivity:
		var d connectivityData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return ConnectivityChanged{baseEvent: base, Interface: d.Interface, Type: d.Type, Connected: d.Connected}, nil
	case KindHandshakeState:
		var d handshakeStateData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return HandshakeStateChanged{baseEvent: base, State: d.State, ErrorCode: d.ErrorCode}, nil
	case KindHandshakeConnection:
		var d handshakeConnectionData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return HandshakeConnectionChanged{baseEvent: base, Connected: d.Connected}, nil
	case KindReconnecting:
		var d reconnectingData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return Reconnecting{baseEvent: base, Attempt: d.Attempt}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}
