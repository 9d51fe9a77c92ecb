package server

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"bomberhans/internal/config"
	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

type fakeConn struct {
	sent   [][]byte
	closed bool
	reason string
}

func (c *fakeConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.closed = true
	c.reason = reason
}

// messages decodes everything the conn received of the given kind.
func (c *fakeConn) messages(t *testing.T, kind protocol.Kind) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for _, data := range c.sent {
		env, msg, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("server sent undecodable packet: %v", err)
		}
		if env.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (c *fakeConn) last(t *testing.T, kind protocol.Kind) protocol.Message {
	t.Helper()
	msgs := c.messages(t, kind)
	if len(msgs) == 0 {
		t.Fatalf("no %s received", kind)
	}
	return msgs[len(msgs)-1]
}

// testClient drives the hub the way the transport would, with its own
// packet numbering.
type testClient struct {
	conn   *fakeConn
	cookie uuid.UUID
	number protocol.PacketNumber
	ack    protocol.PacketNumber
}

func (c *testClient) deliver(h *Hub, msg protocol.Message) {
	c.number++
	h.handle(packet{
		conn: c.conn,
		env: protocol.Envelope{
			Magic:  protocol.Magic,
			Number: c.number,
			Ack:    c.ack,
			Cookie: c.cookie,
			Kind:   msg.Kind(),
		},
		msg: msg,
	})
}

func newTestHub(t *testing.T, recorder Recorder) *Hub {
	t.Helper()
	cfg := config.Default()
	cfg.ScoreCap = 3
	h := NewHub(cfg, log.New(io.Discard), recorder)
	h.now = time.Unix(1000, 0)
	return h
}

// connect runs the hello handshake and returns a client holding its cookie.
func connect(t *testing.T, h *Hub, name string) *testClient {
	t.Helper()
	c := &testClient{conn: &fakeConn{}}
	c.deliver(h, protocol.Hello{Nonce: 7, PlayerName: name})
	ack, ok := c.conn.last(t, protocol.KindHelloAck).(protocol.HelloAck)
	if !ok {
		t.Fatalf("no hello ack for %s", name)
	}
	if ack.Nonce != 7 {
		t.Fatalf("hello ack nonce = %d, want 7", ack.Nonce)
	}
	c.cookie = ack.Cookie
	return c
}

// startGame runs the full lobby flow for two players and returns them in
// player-id order.
func startGame(t *testing.T, h *Hub) (*testClient, *testClient) {
	t.Helper()
	host := connect(t, h, "alice")
	guest := connect(t, h, "bob")

	host.deliver(h, protocol.CreateLobby{GameName: "basement"})
	state, ok := host.conn.last(t, protocol.KindLobbyState).(protocol.LobbyState)
	if !ok {
		t.Fatalf("no lobby state after create")
	}
	guest.deliver(h, protocol.JoinLobby{Lobby: state.ID})
	guest.deliver(h, protocol.Ready{Ready: true})
	host.deliver(h, protocol.StartGame{})

	for _, c := range []*testClient{host, guest} {
		if _, ok := c.conn.last(t, protocol.KindGameStart).(protocol.GameStart); !ok {
			t.Fatalf("missing game start")
		}
	}
	return host, guest
}

func TestHelloOpensSession(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h, "alice")
	if c.cookie == uuid.Nil {
		t.Fatalf("no cookie assigned")
	}
	if len(h.byConn) != 1 || len(h.byCookie) != 1 {
		t.Fatalf("session maps: %d/%d entries, want 1/1", len(h.byConn), len(h.byCookie))
	}

	// A retried hello must not open a second session.
	c.deliver(h, protocol.Hello{Nonce: 7, PlayerName: "alice"})
	if len(h.byCookie) != 1 {
		t.Fatalf("duplicate hello opened a second session")
	}
}

func TestLobbyFlowAndGameStart(t *testing.T) {
	h := newTestHub(t, nil)
	host, guest := startGame(t, h)

	if len(h.matches) != 1 {
		t.Fatalf("%d matches running, want 1", len(h.matches))
	}
	if len(h.lobbies) != 0 {
		t.Fatalf("lobby survived game start")
	}

	hs := host.conn.last(t, protocol.KindGameStart).(protocol.GameStart)
	gs := guest.conn.last(t, protocol.KindGameStart).(protocol.GameStart)
	if hs.LocalPlayer == gs.LocalPlayer {
		t.Fatalf("both clients got player id %d", hs.LocalPlayer)
	}
	if len(hs.Players) != 2 || hs.Players[0] != "alice" || hs.Players[1] != "bob" {
		t.Fatalf("player roster = %v", hs.Players)
	}
}

func TestNonHostCannotStart(t *testing.T) {
	h := newTestHub(t, nil)
	host := connect(t, h, "alice")
	guest := connect(t, h, "bob")
	host.deliver(h, protocol.CreateLobby{})
	state := host.conn.last(t, protocol.KindLobbyState).(protocol.LobbyState)
	guest.deliver(h, protocol.JoinLobby{Lobby: state.ID})

	guest.deliver(h, protocol.StartGame{})
	if len(h.matches) != 0 {
		t.Fatalf("guest started the game")
	}

	// Guest not ready: host cannot start either.
	host.deliver(h, protocol.StartGame{})
	if len(h.matches) != 0 {
		t.Fatalf("game started with an unready guest")
	}
}

func TestTickBroadcastsDeltas(t *testing.T) {
	h := newTestHub(t, nil)
	host, guest := startGame(t, h)

	h.tick()

	for _, c := range []*testClient{host, guest} {
		delta, ok := c.conn.last(t, protocol.KindDelta).(protocol.Delta)
		if !ok {
			t.Fatalf("no delta after tick")
		}
		if delta.Tick != 1 {
			t.Fatalf("delta tick = %d, want 1", delta.Tick)
		}
	}

	hostDelta := host.conn.last(t, protocol.KindDelta).(protocol.Delta)
	guestDelta := guest.conn.last(t, protocol.KindDelta).(protocol.Delta)
	if hostDelta.Checksum != guestDelta.Checksum {
		t.Fatalf("clients got different checksums for the same tick")
	}
}

func TestGameUpdateIsAppliedLoggedAndDelivered(t *testing.T) {
	h := newTestHub(t, nil)
	host, guest := startGame(t, h)
	h.tick()

	host.deliver(h, protocol.GameUpdate{
		LastServerTick: 1,
		ActionTick:     1,
		Action:         game.Walk(game.East),
	})
	h.tick()

	delta := guest.conn.last(t, protocol.KindDelta).(protocol.Delta)
	if len(delta.Entries) != 1 {
		t.Fatalf("guest delta has %d entries, want 1", len(delta.Entries))
	}
	e := delta.Entries[0]
	if e.Tick != 1 || e.Player != 0 || e.Action != game.Walk(game.East) {
		t.Fatalf("logged entry = %+v", e)
	}
}

func TestDuplicatePacketNumberIsDropped(t *testing.T) {
	h := newTestHub(t, nil)
	host, _ := startGame(t, h)
	h.tick()

	host.deliver(h, protocol.GameUpdate{ActionTick: 1, Action: game.Walk(game.East)})
	// Replay the same number with a different action: must be ignored.
	host.number--
	host.deliver(h, protocol.GameUpdate{ActionTick: 1, Action: game.Walk(game.North)})

	var m *match
	for _, mm := range h.matches {
		m = mm
	}
	if got := m.state.Players[0].Action; got != game.Walk(game.East) {
		t.Fatalf("action = %v, want the first delivery to win", got)
	}
}

func TestFutureActionIsBufferedUntilItsTick(t *testing.T) {
	h := newTestHub(t, nil)
	host, _ := startGame(t, h)
	h.tick()

	host.deliver(h, protocol.GameUpdate{
		LastServerTick: 1,
		ActionTick:     4,
		Action:         game.Walk(game.South),
	})

	var m *match
	for _, mm := range h.matches {
		m = mm
	}
	if m.state.Players[0].Action != game.Idle() {
		t.Fatalf("future action applied early")
	}

	h.tick() // runs tick 1
	h.tick() // runs tick 2
	h.tick() // runs tick 3
	if m.state.Players[0].Action != game.Idle() {
		t.Fatalf("action applied before its tick")
	}
	h.tick() // tick 4: the buffered action lands first
	if m.state.Players[0].Action != game.Walk(game.South) {
		t.Fatalf("buffered action never applied")
	}
	if e := m.log.Entries(); len(e) != 1 || e[0].Tick != 4 {
		t.Fatalf("log = %+v, want one entry at tick 4", e)
	}
}

func TestLateActionAppliedAtCurrentTick(t *testing.T) {
	h := newTestHub(t, nil)
	host, _ := startGame(t, h)
	for i := 0; i < 10; i++ {
		h.tick()
	}

	// An action stamped for a tick that already passed still lands, logged
	// at the present.
	host.deliver(h, protocol.GameUpdate{
		LastServerTick: 10,
		ActionTick:     3,
		Action:         game.Place(),
	})

	var m *match
	for _, mm := range h.matches {
		m = mm
	}
	if m.state.Players[0].Action != game.Place() {
		t.Fatalf("late action rejected")
	}
	if e := m.log.Entries(); len(e) != 1 || e[0].Tick != 10 {
		t.Fatalf("log = %+v, want one entry at tick 10", e)
	}
}

func TestSilentSessionIsSkippedNotDropped(t *testing.T) {
	h := newTestHub(t, nil)
	host, guest := startGame(t, h)

	h.now = h.now.Add(h.cfg.SessionTimeout() + time.Second)
	host.deliver(h, protocol.GameUpdate{ActionTick: 0, Action: game.Walk(game.East)})
	hostDeltas := len(host.conn.messages(t, protocol.KindDelta))
	guestDeltas := len(guest.conn.messages(t, protocol.KindDelta))
	h.tick()

	if got := len(host.conn.messages(t, protocol.KindDelta)); got != hostDeltas+1 {
		t.Fatalf("active session got no delta")
	}
	if got := len(guest.conn.messages(t, protocol.KindDelta)); got != guestDeltas {
		t.Fatalf("silent session still receives deltas")
	}
	if len(h.byCookie) != 2 {
		t.Fatalf("silent session was dropped")
	}
}

func TestHostLeavingClosesLobby(t *testing.T) {
	h := newTestHub(t, nil)
	host := connect(t, h, "alice")
	guest := connect(t, h, "bob")
	host.deliver(h, protocol.CreateLobby{})
	state := host.conn.last(t, protocol.KindLobbyState).(protocol.LobbyState)
	guest.deliver(h, protocol.JoinLobby{Lobby: state.ID})

	h.handle(packet{conn: host.conn, gone: true})

	if len(h.lobbies) != 0 {
		t.Fatalf("lobby survived host disconnect")
	}
	bye, ok := guest.conn.last(t, protocol.KindServerBye).(protocol.ServerBye)
	if !ok {
		t.Fatalf("guest not notified")
	}
	if bye.Reason != "lobby closed" {
		t.Fatalf("bye reason = %q", bye.Reason)
	}
}

func TestReliableRetransmitUntilAck(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h, "alice")
	sentBefore := len(c.conn.sent)

	h.now = h.now.Add(h.cfg.Resend() + time.Millisecond)
	h.retransmit()
	if len(c.conn.sent) != sentBefore+1 {
		t.Fatalf("unacked hello ack not retransmitted")
	}

	// Ack everything the server sent; retransmission must stop.
	env, _, err := protocol.Decode(c.conn.sent[len(c.conn.sent)-1])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c.ack = env.Number
	c.deliver(h, protocol.LobbyPoll{})

	h.now = h.now.Add(h.cfg.Resend() + time.Millisecond)
	sentBefore = len(c.conn.sent)
	h.retransmit()
	if len(c.conn.sent) != sentBefore {
		t.Fatalf("acked packet still retransmitted")
	}
}

type fakeRecorder struct {
	results []MatchResult
}

func (r *fakeRecorder) RecordMatch(result MatchResult) error {
	r.results = append(r.results, result)
	return nil
}

func TestScoreCapEndsAndRecordsMatch(t *testing.T) {
	rec := &fakeRecorder{}
	h := newTestHub(t, rec)
	host, guest := startGame(t, h)
	h.tick()

	var m *match
	for _, mm := range h.matches {
		m = mm
	}
	m.state.Players[1].Kills = h.cfg.ScoreCap
	h.tick()

	if len(h.matches) != 0 {
		t.Fatalf("match still running after score cap")
	}
	if len(rec.results) != 1 {
		t.Fatalf("%d results recorded, want 1", len(rec.results))
	}
	result := rec.results[0]
	if !result.Players[1].Winner || result.Players[0].Winner {
		t.Fatalf("winner flags = %+v, want bob", result.Players)
	}
	for _, c := range []*testClient{host, guest} {
		if _, ok := c.conn.last(t, protocol.KindServerBye).(protocol.ServerBye); !ok {
			t.Fatalf("missing game-over bye")
		}
	}
}

func TestDisconnectEndsMatchForLastPlayer(t *testing.T) {
	h := newTestHub(t, nil)
	host, guest := startGame(t, h)
	h.tick()

	h.handle(packet{conn: guest.conn, gone: true})
	h.tick()

	if len(h.matches) != 0 {
		t.Fatalf("match still running with one player left")
	}
	if _, ok := host.conn.last(t, protocol.KindServerBye).(protocol.ServerBye); !ok {
		t.Fatalf("remaining player not notified")
	}
}
