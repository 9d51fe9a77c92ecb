// Package server implements the authoritative side: lobbies, sessions, and
// the fixed-rate tick loop that owns every running game's canonical state.
//
// All game and lobby state is confined to the hub goroutine. Transport
// goroutines hand packets in through a single intake channel which the loop
// drains once per tick, so no lock ever guards a GameState.
package server

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"bomberhans/internal/config"
	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

const intakeCapacity = 1024

// packet is one intake item: either a decoded message or a transport
// disconnect notice.
type packet struct {
	conn Conn
	env  protocol.Envelope
	msg  protocol.Message
	gone bool
}

// Hub owns every session, lobby and running match on this server.
type Hub struct {
	cfg      config.Config
	log      *log.Logger
	recorder Recorder

	intake chan packet

	byConn   map[Conn]*session
	byCookie map[uuid.UUID]*session
	lobbies  map[uuid.UUID]*lobby
	matches  map[uuid.UUID]*match

	// now is the wall clock of the current loop iteration.
	now time.Time
}

// NewHub builds a hub. The recorder may be nil to disable persistence.
func NewHub(cfg config.Config, logger *log.Logger, recorder Recorder) *Hub {
	return &Hub{
		cfg:      cfg,
		log:      logger,
		recorder: recorder,
		intake:   make(chan packet, intakeCapacity),
		byConn:   make(map[Conn]*session),
		byCookie: make(map[uuid.UUID]*session),
		lobbies:  make(map[uuid.UUID]*lobby),
		matches:  make(map[uuid.UUID]*match),
		now:      time.Now(),
	}
}

// Receive decodes a raw packet from the transport and queues it for the
// loop. Undecodable packets and intake overflow drop the packet; a lost
// packet is indistinguishable from network loss and the reliability layer
// covers it.
func (h *Hub) Receive(conn Conn, data []byte) {
	env, msg, err := protocol.Decode(data)
	if err != nil {
		h.log.Debug("dropping undecodable packet", "err", err)
		return
	}
	select {
	case h.intake <- packet{conn: conn, env: env, msg: msg}:
	default:
		h.log.Warn("intake full, dropping packet", "kind", env.Kind)
	}
}

// Disconnect tells the loop a connection is gone. Blocks if intake is full;
// disconnects must not be lost.
func (h *Hub) Disconnect(conn Conn) {
	h.intake <- packet{conn: conn, gone: true}
}

// Run drives the hub at the simulation rate until the context ends.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub running", "server", h.cfg.ServerName, "tick_rate", game.TicksPerSecond)
	ticker := time.NewTicker(game.TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case now := <-ticker.C:
			h.now = now
			h.drain()
			h.tick()
		}
	}
}

// drain empties the intake queue. Called once per tick so every packet that
// arrived during the last interval lands on the same simulation step.
func (h *Hub) drain() {
	for {
		select {
		case p := <-h.intake:
			h.handle(p)
		default:
			return
		}
	}
}

func (h *Hub) handle(p packet) {
	if p.gone {
		if s := h.byConn[p.conn]; s != nil {
			h.teardown(s, "disconnected")
		}
		return
	}

	s := h.byConn[p.conn]
	if s == nil {
		// Only a hello may open a session.
		if hello, ok := p.msg.(protocol.Hello); ok {
			h.handleHello(p.conn, hello)
		}
		return
	}

	if p.env.Cookie != s.cookie && p.env.Cookie != uuid.Nil {
		h.log.Warn("cookie mismatch", "session", s.cookie, "got", p.env.Cookie)
		return
	}

	// Acks are processed even for duplicates; the packet number check only
	// guards against re-running side effects.
	s.outbox.Ack(p.env.Ack)
	s.lastHeard = h.now
	if !s.dedup.Accept(p.env.Number) {
		return
	}

	switch msg := p.msg.(type) {
	case protocol.Hello:
		// Session already open; the pending hello ack keeps retransmitting
		// until it lands.
	case protocol.CreateLobby:
		h.handleCreateLobby(s, msg)
	case protocol.JoinLobby:
		h.handleJoinLobby(s, msg)
	case protocol.SettingsUpdate:
		h.handleSettingsUpdate(s, msg)
	case protocol.Ready:
		h.handleReady(s, msg)
	case protocol.StartGame:
		h.handleStartGame(s)
	case protocol.LobbyPoll:
		h.sendTo(s, h.helloAck(0, s.cookie), false)
	case protocol.GameUpdate:
		if s.match != nil {
			s.match.applyUpdate(s, msg)
		}
	case protocol.Bye:
		h.teardown(s, "bye")
		p.conn.Close("bye")
	default:
		h.log.Debug("ignoring unexpected message", "kind", p.env.Kind, "session", s.cookie)
	}
}

func (h *Hub) handleHello(conn Conn, msg protocol.Hello) {
	name := msg.PlayerName
	if name == "" {
		name = "anonymous"
	}
	s := &session{
		cookie:    uuid.New(),
		name:      name,
		conn:      conn,
		lastHeard: h.now,
	}
	h.byConn[conn] = s
	h.byCookie[s.cookie] = s
	h.log.Info("session opened", "player", s.name, "session", s.cookie)
	h.sendTo(s, h.helloAck(msg.Nonce, s.cookie), true)
}

func (h *Hub) handleCreateLobby(s *session, msg protocol.CreateLobby) {
	if s.match != nil {
		return
	}
	if s.lobby != nil {
		// Duplicate create: just refresh the view.
		h.sendTo(s, s.lobby.state(), false)
		return
	}
	settings := h.cfg.Game
	settings.GameName = msg.GameName
	if settings.GameName == "" {
		settings.GameName = s.name + "'s game"
	}
	l := newLobby(s, settings)
	h.lobbies[l.id] = l
	s.lobby = l
	h.log.Info("lobby created", "lobby", l.id, "host", s.name)
	h.sendTo(s, l.state(), true)
}

func (h *Hub) handleJoinLobby(s *session, msg protocol.JoinLobby) {
	if s.match != nil {
		return
	}
	l := h.lobbies[msg.Lobby]
	if l == nil {
		h.log.Debug("join for unknown lobby", "lobby", msg.Lobby, "player", s.name)
		return
	}
	if s.lobby == l {
		h.sendTo(s, l.state(), false)
		return
	}
	if s.lobby != nil || l.full() {
		return
	}
	l.add(s)
	s.lobby = l
	h.log.Info("player joined lobby", "lobby", l.id, "player", s.name)
	h.broadcastLobby(l)
}

func (h *Hub) handleSettingsUpdate(s *session, msg protocol.SettingsUpdate) {
	l := s.lobby
	if l == nil || s != l.host {
		return
	}
	if err := msg.Settings.Validate(); err != nil {
		h.log.Debug("rejecting settings", "lobby", l.id, "err", err)
		return
	}
	if msg.Settings.Players < len(l.members) {
		return
	}
	l.settings = msg.Settings
	h.broadcastLobby(l)
}

func (h *Hub) handleReady(s *session, msg protocol.Ready) {
	l := s.lobby
	if l == nil {
		return
	}
	l.ready[s] = msg.Ready
	h.broadcastLobby(l)
}

func (h *Hub) handleStartGame(s *session) {
	l := s.lobby
	if l == nil || s != l.host || !l.allReady() {
		return
	}
	m, err := newMatch(l, ScoreCap{Kills: h.cfg.ScoreCap})
	if err != nil {
		h.log.Error("cannot start game", "lobby", l.id, "err", err)
		return
	}
	delete(h.lobbies, l.id)
	h.matches[m.id] = m
	h.log.Info("game started", "match", m.id, "players", len(m.sessions))

	start := protocol.GameStart{
		Settings: m.state.Settings,
		Players:  make([]string, len(m.sessions)),
	}
	for i, member := range m.sessions {
		start.Players[i] = member.name
	}
	for _, member := range m.sessions {
		member.lobby = nil
		start.LocalPlayer = member.player
		h.sendTo(member, start, true)
	}
}

// tick advances every running match one step and broadcasts deltas.
func (h *Hub) tick() {
	for id, m := range h.matches {
		m.tick()
		for _, s := range m.sessions {
			if s == nil || s.silent(h.now, h.cfg.SessionTimeout()) {
				continue
			}
			h.sendTo(s, m.delta(s), false)
		}
		if winner, ended := m.policy.Evaluate(m.state, m.connected()); ended {
			h.endMatch(id, m, winner)
		}
	}
	h.retransmit()
}

func (h *Hub) endMatch(id uuid.UUID, m *match, winner game.PlayerID) {
	delete(h.matches, id)
	result := m.result(winner)
	h.log.Info("game over", "match", id,
		"ticks", result.Ticks, "winner", result.Players[winner].Name)

	if h.recorder != nil {
		if err := h.recorder.RecordMatch(result); err != nil {
			h.log.Error("recording match failed", "match", id, "err", err)
		}
	}

	bye := protocol.ServerBye{
		Reason: fmt.Sprintf("game over, %s wins", result.Players[winner].Name),
	}
	for _, s := range m.sessions {
		if s == nil {
			continue
		}
		s.match = nil
		h.sendTo(s, bye, true)
	}
}

// retransmit resends every reliable packet whose ack is overdue.
func (h *Hub) retransmit() {
	for _, s := range h.byConn {
		for _, data := range s.outbox.Due(h.now, h.cfg.Resend()) {
			if err := s.conn.Send(data); err != nil {
				h.log.Debug("retransmit failed", "session", s.cookie, "err", err)
				break
			}
		}
	}
}

// teardown removes a session from whatever it is part of. A host leaving
// closes the whole lobby; a guest leaving just shrinks it.
func (h *Hub) teardown(s *session, reason string) {
	h.log.Info("session closed", "player", s.name, "session", s.cookie, "reason", reason)
	if l := s.lobby; l != nil {
		s.lobby = nil
		if s == l.host {
			delete(h.lobbies, l.id)
			for _, member := range l.members {
				if member == s {
					continue
				}
				member.lobby = nil
				h.sendTo(member, protocol.ServerBye{Reason: "lobby closed"}, true)
			}
		} else {
			l.remove(s)
			h.broadcastLobby(l)
		}
	}
	if s.match != nil {
		s.match.drop(s)
	}
	delete(h.byConn, s.conn)
	delete(h.byCookie, s.cookie)
}

func (h *Hub) broadcastLobby(l *lobby) {
	state := l.state()
	for _, member := range l.members {
		h.sendTo(member, state, true)
	}
}

func (h *Hub) sendTo(s *session, msg protocol.Message, reliable bool) {
	if err := s.send(msg, h.now, reliable); err != nil {
		h.log.Debug("send failed", "session", s.cookie, "kind", msg.Kind(), "err", err)
	}
}

// helloAck builds the session greeting with the current lobby listing.
func (h *Hub) helloAck(nonce uint32, cookie uuid.UUID) protocol.HelloAck {
	lobbies := make([]protocol.LobbyInfo, 0, len(h.lobbies))
	for _, l := range h.lobbies {
		lobbies = append(lobbies, l.info())
	}
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].Name < lobbies[j].Name })
	return protocol.HelloAck{
		Nonce:      nonce,
		Cookie:     cookie,
		ServerName: h.cfg.ServerName,
		Lobbies:    lobbies,
	}
}

func (h *Hub) shutdown() {
	h.log.Info("hub shutting down", "sessions", len(h.byConn))
	for _, s := range h.byConn {
		h.sendTo(s, protocol.ServerBye{Reason: "server shutting down"}, false)
		s.conn.Close("shutdown")
	}
}
