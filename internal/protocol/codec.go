package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrBadMagic is returned for packets from a different protocol revision.
var ErrBadMagic = errors.New("protocol: bad magic")

// ErrUnknownKind is returned for envelopes with an unrecognized payload kind.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// Envelope frames every packet on the wire.
type Envelope struct {
	Magic  uint32             `msgpack:"m"`
	Number PacketNumber       `msgpack:"n"`
	Ack    PacketNumber       `msgpack:"k"`
	Cookie uuid.UUID          `msgpack:"c"`
	Kind   Kind               `msgpack:"t"`
	Body   msgpack.RawMessage `msgpack:"b"`
}

// Encode wraps the message in an envelope and marshals it.
func Encode(number, ack PacketNumber, cookie uuid.UUID, msg Message) ([]byte, error) {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s body: %w", msg.Kind(), err)
	}
	data, err := msgpack.Marshal(Envelope{
		Magic:  Magic,
		Number: number,
		Ack:    ack,
		Cookie: cookie,
		Kind:   msg.Kind(),
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s envelope: %w", msg.Kind(), err)
	}
	return data, nil
}

// Decode unmarshals a packet and its typed payload.
func Decode(data []byte) (Envelope, Message, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if env.Magic != Magic {
		return env, nil, fmt.Errorf("%w: %#x", ErrBadMagic, env.Magic)
	}
	msg, err := newMessage(env.Kind)
	if err != nil {
		return env, nil, err
	}
	if err := msgpack.Unmarshal(env.Body, msg); err != nil {
		return env, nil, fmt.Errorf("protocol: unmarshal %s body: %w", env.Kind, err)
	}
	return env, deref(msg), nil
}

func newMessage(k Kind) (Message, error) {
	switch k {
	case KindHello:
		return &Hello{}, nil
	case KindCreateLobby:
		return &CreateLobby{}, nil
	case KindJoinLobby:
		return &JoinLobby{}, nil
	case KindSettingsUpdate:
		return &SettingsUpdate{}, nil
	case KindReady:
		return &Ready{}, nil
	case KindStartGame:
		return &StartGame{}, nil
	case KindLobbyPoll:
		return &LobbyPoll{}, nil
	case KindGameUpdate:
		return &GameUpdate{}, nil
	case KindBye:
		return &Bye{}, nil
	case KindHelloAck:
		return &HelloAck{}, nil
	case KindLobbyState:
		return &LobbyState{}, nil
	case KindGameStart:
		return &GameStart{}, nil
	case KindDelta:
		return &Delta{}, nil
	case KindServerBye:
		return &ServerBye{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
}

// deref returns the value form so callers can type-switch on concrete
// message types instead of pointers.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Hello:
		return *v
	case *CreateLobby:
		return *v
	case *JoinLobby:
		return *v
	case *SettingsUpdate:
		return *v
	case *Ready:
		return *v
	case *StartGame:
		return *v
	case *LobbyPoll:
		return *v
	case *GameUpdate:
		return *v
	case *Bye:
		return *v
	case *HelloAck:
		return *v
	case *LobbyState:
		return *v
	case *GameStart:
		return *v
	case *Delta:
		return *v
	case *ServerBye:
		return *v
	}
	return m
}
