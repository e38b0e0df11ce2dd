package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/sceneedit/internal/engine"
	"github.com/inamate/sceneedit/internal/scene"
	"github.com/inamate/sceneedit/internal/typeid"
)

const ioTimeout = 10 * time.Second

// Loader returns the persisted scene of a session. A nil state with a nil
// error starts the session from an empty scene.
type Loader func(ctx context.Context, sessionID string) (*scene.State, error)

// Saver persists the scene of a session.
type Saver func(ctx context.Context, sessionID string, st scene.State) error

type Options struct {
	Engine       engine.Options
	SaveInterval time.Duration // zero disables periodic saves
}

type inbound struct {
	client *Client
	msg    *Message
}

// Hub owns every session. All session state is touched only by the Run
// goroutine, which makes each session a single writer.
type Hub struct {
	loader Loader
	saver  Saver
	opts   Options

	sessions   map[string]*Session // sessionID -> session
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewHub(loader Loader, saver Saver, opts Options) *Hub {
	return &Hub{
		loader:     loader,
		saver:      saver,
		opts:       opts,
		sessions:   make(map[string]*Session),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	var tick <-chan time.Time
	if h.opts.SaveInterval > 0 {
		ticker := time.NewTicker(h.opts.SaveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.inbound:
			h.handleMessage(in.client, in.msg)
		case <-tick:
			h.saveAll()
		case <-h.stop:
			h.shutdown()
			close(h.done)
			return
		}
	}
}

// Stop saves every dirty session, disconnects the clients and waits for Run
// to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) deliver(client *Client, msg *Message) {
	select {
	case h.inbound <- inbound{client: client, msg: msg}:
	case <-h.done:
	}
}

// session returns the session for id, loading it on first use.
func (h *Hub) session(id string) *Session {
	if s, ok := h.sessions[id]; ok {
		return s
	}

	eng := engine.NewEngine(h.opts.Engine)
	if h.loader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		st, err := h.loader(ctx, id)
		cancel()
		switch {
		case err != nil:
			slog.Error("load session, starting empty", "session", id, "error", err)
		case st != nil:
			if err := eng.LoadState(*st); err != nil {
				slog.Error("restore session, starting empty", "session", id, "error", err)
			}
		}
	}

	s := newSession(id, eng)
	h.sessions[id] = s
	slog.Info("session opened", "session", id)
	return s
}

func (h *Hub) addClient(client *Client) {
	s := h.session(client.SessionID)
	s.clients[client.ClientID] = client

	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID:  client.ClientID,
		SessionID: s.id,
		ServerSeq: s.serverSeq,
	}))
	client.Send(s.syncMessage())
	if stateMsg := s.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		ClientID:    client.ClientID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	s.broadcast(joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "session", s.id)
}

func (h *Hub) removeClient(client *Client) {
	s, ok := h.sessions[client.SessionID]
	if !ok {
		return
	}
	if _, ok := s.clients[client.ClientID]; !ok {
		return
	}

	delete(s.clients, client.ClientID)
	close(client.send)
	s.presence.Remove(client.ClientID)

	leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{
		UserID:   client.UserID,
		ClientID: client.ClientID,
	})
	leaveMsg.UserID = client.UserID
	s.broadcast(leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "session", s.id)

	if len(s.clients) == 0 {
		h.save(s)
		s.unsubscribe()
		delete(h.sessions, s.id)
		slog.Info("session closed", "session", s.id)
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	s, ok := h.sessions[sender.SessionID]
	if !ok {
		return
	}

	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(s, sender, msg)
	case TypeCmdSubmit:
		h.handleSubmit(s, sender, msg)
	case TypeSceneSync:
		sender.Send(s.syncMessage())
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(newMessage(TypeError, ErrorPayload{Message: "unknown message type " + msg.Type}))
	}
}

func (h *Hub) handlePresenceUpdate(s *Session, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	s.presence.Update(sender.ClientID, &presence)

	outMsg := newMessage(TypePresenceUpdate, presence)
	outMsg.UserID = sender.UserID
	outMsg.ClientID = sender.ClientID
	s.broadcast(outMsg, sender.ClientID)
}

func (h *Hub) handleSubmit(s *Session, sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(newMessage(TypeCmdNack, OperationNackPayload{
			Reason:  ReasonInvalid,
			Message: "invalid operation payload",
		}))
		return
	}
	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	created, err := s.Apply(op)
	if err != nil {
		reason := nackReason(err)
		if reason == ReasonCorruption {
			slog.Error("operation hit corrupted history", "op", op.ID, "session", s.id, "error", err)
		} else {
			slog.Warn("operation rejected", "op", op.ID, "type", op.Type, "reason", reason, "error", err)
		}
		sender.Send(newMessage(TypeCmdNack, OperationNackPayload{
			OperationID: op.ID,
			Reason:      reason,
			Message:     err.Error(),
		}))
		return
	}

	s.serverSeq++
	ack := newMessage(TypeCmdAck, OperationAckPayload{
		OperationID: op.ID,
		ServerSeq:   s.serverSeq,
		EntityID:    created,
		Selection:   s.engine.Selection(),
		ViewID:      s.engine.ViewID(),
	})
	ack.Seq = op.ClientSeq
	sender.Send(ack)

	s.prunePresence()
}

// save persists s if it changed since the last save.
func (h *Hub) save(s *Session) {
	if !s.dirty || h.saver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := h.saver(ctx, s.id, s.engine.State()); err != nil {
		slog.Error("save session", "session", s.id, "error", err)
		return
	}
	s.dirty = false
	slog.Debug("session saved", "session", s.id, "seq", s.serverSeq)
}

func (h *Hub) saveAll() {
	for _, s := range h.sessions {
		h.save(s)
	}
}

func (h *Hub) shutdown() {
	h.saveAll()
	for _, s := range h.sessions {
		for _, c := range s.clients {
			close(c.send)
		}
		s.clients = nil
		s.unsubscribe()
	}
	h.sessions = make(map[string]*Session)
}
