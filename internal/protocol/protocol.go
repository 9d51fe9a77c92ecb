// Package protocol defines the wire messages exchanged between server and
// clients and their binary codec. Every packet travels inside an Envelope
// carrying a magic number, a per-sender packet number for duplicate and
// stale detection, and an ack echoing the highest packet number received
// from the peer.
package protocol

import (
	"github.com/google/uuid"

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
)

// Magic identifies the protocol and its revision. Peers speaking a
// different revision are rejected at decode time.
const Magic uint32 = 0x42480001

// PacketNumber increases by one for every packet a sender emits. Receivers
// drop packets whose number is not greater than the last one seen from that
// sender.
type PacketNumber uint32

// Kind discriminates the payload type of an envelope.
type Kind uint8

const (
	// Client to server.
	KindHello Kind = iota + 1
	KindCreateLobby
	KindJoinLobby
	KindSettingsUpdate
	KindReady
	KindStartGame
	KindLobbyPoll
	KindGameUpdate
	KindBye

	// Server to client.
	KindHelloAck
	KindLobbyState
	KindGameStart
	KindDelta
	KindServerBye
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindCreateLobby:
		return "create_lobby"
	case KindJoinLobby:
		return "join_lobby"
	case KindSettingsUpdate:
		return "settings_update"
	case KindReady:
		return "ready"
	case KindStartGame:
		return "start_game"
	case KindLobbyPoll:
		return "lobby_poll"
	case KindGameUpdate:
		return "game_update"
	case KindBye:
		return "bye"
	case KindHelloAck:
		return "hello_ack"
	case KindLobbyState:
		return "lobby_state"
	case KindGameStart:
		return "game_start"
	case KindDelta:
		return "delta"
	case KindServerBye:
		return "server_bye"
	}
	return "unknown"
}

// Message is implemented by every payload type.
type Message interface {
	Kind() Kind
}

// Hello opens a session. The nonce lets the client match the ack when it
// retries a lost hello.
type Hello struct {
	Nonce      uint32 `msgpack:"n"`
	PlayerName string `msgpack:"p"`
}

func (Hello) Kind() Kind { return KindHello }

// CreateLobby asks the server to open a new lobby with the sender as host.
type CreateLobby struct {
	GameName string `msgpack:"g"`
}

func (CreateLobby) Kind() Kind { return KindCreateLobby }

// JoinLobby asks to join an existing lobby.
type JoinLobby struct {
	Lobby uuid.UUID `msgpack:"l"`
}

func (JoinLobby) Kind() Kind { return KindJoinLobby }

// SettingsUpdate changes the lobby settings. Only the host may send it.
type SettingsUpdate struct {
	Settings game.Settings `msgpack:"s"`
}

func (SettingsUpdate) Kind() Kind { return KindSettingsUpdate }

// Ready toggles the sender's ready flag in the lobby.
type Ready struct {
	Ready bool `msgpack:"r"`
}

func (Ready) Kind() Kind { return KindReady }

// StartGame starts the game. Only the host may send it, and only once every
// guest is ready.
type StartGame struct{}

func (StartGame) Kind() Kind { return KindStartGame }

// LobbyPoll asks for a fresh lobby listing.
type LobbyPoll struct{}

func (LobbyPoll) Kind() Kind { return KindLobbyPoll }

// GameUpdate carries the client's current action and acknowledges server
// deltas up to LastServerTick. ActionTick is the client's estimate of the
// tick its action should land on; the server clamps it into the present.
type GameUpdate struct {
	LastServerTick game.Tick   `msgpack:"k"`
	ActionTick     game.Tick   `msgpack:"t"`
	Action         game.Action `msgpack:"a"`
}

func (GameUpdate) Kind() Kind { return KindGameUpdate }

// Bye announces that the client is leaving.
type Bye struct{}

func (Bye) Kind() Kind { return KindBye }

// LobbyInfo is one row of the lobby listing.
type LobbyInfo struct {
	ID      uuid.UUID `msgpack:"i"`
	Name    string    `msgpack:"n"`
	Players int       `msgpack:"p"`
}

// HelloAck confirms a session. The cookie authenticates every later packet
// from this client.
type HelloAck struct {
	Nonce      uint32      `msgpack:"o"`
	Cookie     uuid.UUID   `msgpack:"c"`
	ServerName string      `msgpack:"s"`
	Lobbies    []LobbyInfo `msgpack:"l"`
}

func (HelloAck) Kind() Kind { return KindHelloAck }

// LobbyPlayer is one participant in a lobby.
type LobbyPlayer struct {
	Name  string `msgpack:"n"`
	Ready bool   `msgpack:"r"`
	Host  bool   `msgpack:"h"`
}

// LobbyState is the full lobby view pushed after every lobby change.
type LobbyState struct {
	ID       uuid.UUID     `msgpack:"i"`
	Settings game.Settings `msgpack:"s"`
	Players  []LobbyPlayer `msgpack:"p"`
}

func (LobbyState) Kind() Kind { return KindLobbyState }

// GameStart announces the transition from lobby to running game.
type GameStart struct {
	Settings    game.Settings `msgpack:"s"`
	Players     []string      `msgpack:"p"`
	LocalPlayer game.PlayerID `msgpack:"l"`
}

func (GameStart) Kind() Kind { return KindGameStart }

// Delta carries every log entry the client has not acknowledged yet plus
// the server's current tick and state checksum. Deltas are cumulative: a
// lost delta is covered by the next one.
type Delta struct {
	Tick     game.Tick       `msgpack:"t"`
	Checksum uint64          `msgpack:"c"`
	Entries  []eventlog.Entry `msgpack:"e"`
}

func (Delta) Kind() Kind { return KindDelta }

// ServerBye terminates the session from the server side.
type ServerBye struct {
	Reason string `msgpack:"r"`
}

func (ServerBye) Kind() Kind { return KindServerBye }
