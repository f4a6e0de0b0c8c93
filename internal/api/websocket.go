package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"arena-combat/internal/ability"
	"arena-combat/internal/config"
	"arena-combat/internal/game"
	"arena-combat/internal/protocol"
	"arena-combat/internal/world"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// sendBuffer is the per-session outbound queue; a full queue drops frames.
	sendBuffer = 64

	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10

	// StateInterval is how often the arena snapshot is pushed to sessions.
	StateInterval = 100 * time.Millisecond

	skillOfferSize = 3
)

// HubConfig configures the session hub.
type HubConfig struct {
	Engine  EngineInterface
	Origins *OriginPolicy
	Combat  config.CombatConfig
	// TickRate is reported to clients in the welcome frame.
	TickRate int
	// MaxTotal and MaxPerIP default to MaxWSConnectionsTotal and MaxWSConnectionsPerIP.
	MaxTotal int
	MaxPerIP int
	Logger   zerolog.Logger
}

// Hub owns the live websocket sessions. Each session controls exactly one pawn
// for as long as the connection lives.
type Hub struct {
	engine   EngineInterface
	origins  *OriginPolicy
	tickRate int
	limiter  *ConnLimiter
	commands *CommandLimiter
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// NewHub creates a hub. Nothing runs until Run is called.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Origins == nil {
		cfg.Origins = NewOriginPolicy(nil)
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = MaxWSConnectionsTotal
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = MaxWSConnectionsPerIP
	}
	h := &Hub{
		engine:   cfg.Engine,
		origins:  cfg.Origins,
		tickRate: cfg.TickRate,
		limiter:  NewConnLimiter(cfg.MaxTotal, cfg.MaxPerIP),
		commands: NewKeyedLimiter[world.EntityID](CommandRateLimitFromConfig(cfg.Combat)),
		logger:   cfg.Logger.With().Str("component", "ws").Logger(),
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.origins.Allowed(origin) {
				return true
			}
			h.logger.Warn().Str("origin", origin).Msg("websocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run pushes arena snapshots and pending ledger changes to every session until
// ctx is done, then closes the remaining sessions.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(StateInterval)
	defer ticker.Stop()

	h.commands.StartCleanup()
	defer h.commands.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if h.SessionCount() == 0 {
				continue
			}
			snap := h.engine.Snapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			frame, err := protocol.Encode(protocol.EventState, 0, snap)
			if err != nil {
				h.logger.Error().Err(err).Msg("encode state")
				continue
			}
			h.broadcast(frame)
			h.syncLedgers(snap)
		}
	}
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		s.enqueue(frame)
	}
}

// list copies the session set so callers can reach the engine without h.mu.
func (h *Hub) list() []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// syncLedgers catches every session up on ledgers that moved since its last
// push: respawn restocks, bot slot switches, pawns it has never seen.
func (h *Hub) syncLedgers(snap *game.GameSnapshot) {
	versions := make(map[world.EntityID]uint64, len(snap.Pawns))
	for _, p := range snap.Pawns {
		versions[p.ID] = p.LedgerVersion
	}
	for _, s := range h.list() {
		s.syncLedgers(versions)
	}
}

// publishLedger pushes pawn's latest ledger change to every session.
func (h *Hub) publishLedger(pawn world.EntityID) {
	for _, s := range h.list() {
		s.pushLedger(pawn)
	}
}

func (h *Hub) closeAll() {
	for _, s := range h.list() {
		s.close()
	}
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleWebSocket upgrades the request and joins a pawn for the new session.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if reason := h.limiter.Acquire(ip); reason != ConnAccepted {
		h.logger.Warn().Str("ip", ip).Str("reason", string(reason)).Msg("websocket connection rejected")
		RecordConnectionRejected(string(reason))
		status := http.StatusTooManyRequests
		if reason == ConnTotalLimit {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "Too many connections", status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str("ip", ip).Msg("websocket upgrade failed")
		h.limiter.Release(ip)
		return
	}

	s := &session{
		id:      uuid.New(),
		hub:     h,
		conn:    conn,
		ip:      ip,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		ledgers: make(map[world.EntityID]uint64),
	}
	s.logger = h.logger.With().Str("session", s.id.String()).Str("ip", ip).Logger()

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Player-" + s.id.String()[:8]
	}
	pawn, err := h.engine.Join(name, game.JoinOptions{Client: s})
	if err != nil {
		RecordConnectionRejected("arena_full")
		s.writeNow(protocol.EventError, protocol.Error{Code: sessionErrorCode(err), Message: err.Error()})
		conn.Close()
		h.limiter.Release(ip)
		return
	}
	s.pawn = pawn

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	count := len(h.sessions)
	h.mu.Unlock()
	UpdateWSConnections(count)
	s.logger.Info().Uint32("pawn", uint32(pawn)).Int("sessions", count).Msg("session opened")

	go s.writePump()
	s.welcome()
	go s.readPump()
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	count := len(h.sessions)
	h.mu.Unlock()

	h.limiter.Release(s.ip)
	h.commands.Forget(s.pawn)
	if err := h.engine.Leave(s.pawn); err != nil && !errors.Is(err, game.ErrUnknownPawn) {
		s.logger.Warn().Err(err).Msg("leave failed")
	}
	UpdateWSConnections(count)
	s.logger.Info().Int("sessions", count).Msg("session closed")
}

// session is one websocket connection bound to one pawn.
type session struct {
	id     uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	ip     string
	pawn   world.EntityID
	logger zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	outSeq    atomic.Uint32

	// ledgers is the last ledger version pushed per pawn. ledgerMu is held
	// across compute and enqueue so one pawn's deltas leave in order.
	ledgerMu sync.Mutex
	ledgers  map[world.EntityID]uint64
	welcomed atomic.Bool

	// Reader goroutine only
	inSeq protocol.Sequencer
}

// ConfirmTargetData delivers the authority's verdict. It runs under the engine
// lock, so it only queues.
func (s *session) ConfirmTargetData(c ability.Confirmation) {
	s.push(protocol.EventConfirm, c)
}

// push reports whether the frame was queued.
func (s *session) push(event string, data any) bool {
	frame, err := protocol.Encode(event, s.outSeq.Add(1), data)
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("encode")
		return false
	}
	return s.enqueue(frame)
}

func (s *session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	case s.send <- frame:
		return true
	default:
		// Slow consumer, drop (backpressure)
		return false
	}
}

// writeNow bypasses the queue; only used before the pumps start.
func (s *session) writeNow(event string, data any) {
	frame, err := protocol.Encode(event, s.outSeq.Add(1), data)
	if err != nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.hub.remove(s)
	})
}

func (s *session) welcome() {
	specs, err := s.hub.engine.Specs(s.pawn)
	if err != nil {
		s.logger.Warn().Err(err).Msg("welcome specs")
	}

	s.ledgerMu.Lock()
	delta, err := s.hub.engine.LedgerDelta(s.pawn, 0)
	if err != nil {
		s.logger.Warn().Err(err).Msg("welcome ledger")
	}
	if s.push(protocol.EventWelcome, protocol.Welcome{
		Session:  s.id,
		Pawn:     s.pawn,
		TickRate: s.hub.tickRate,
		Specs:    specs,
		Ledger:   delta,
	}) {
		s.ledgers[s.pawn] = delta.To
	}
	s.ledgerMu.Unlock()
	s.welcomed.Store(true)

	s.offerSkills()
}

// pushLedger sends pawn's ledger changes this session has not received yet.
func (s *session) pushLedger(pawn world.EntityID) {
	if !s.welcomed.Load() {
		return
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.pushLedgerLocked(pawn)
}

func (s *session) pushLedgerLocked(pawn world.EntityID) {
	from := s.ledgers[pawn]
	delta, err := s.hub.engine.LedgerDelta(pawn, from)
	if err != nil {
		return
	}
	if !delta.Reset && delta.To <= from {
		return
	}
	// A dropped frame leaves the version behind so the next push resends it
	if s.push(protocol.EventLedgerDelta, protocol.LedgerUpdate{Pawn: pawn, Delta: delta}) {
		s.ledgers[pawn] = delta.To
	}
}

// syncLedgers pushes every pawn whose published version is ahead of this
// session and forgets pawns that left.
func (s *session) syncLedgers(versions map[world.EntityID]uint64) {
	if !s.welcomed.Load() {
		return
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	for id := range s.ledgers {
		if _, ok := versions[id]; !ok {
			delete(s.ledgers, id)
		}
	}
	for id, v := range versions {
		if last, ok := s.ledgers[id]; !ok || v > last {
			s.pushLedgerLocked(id)
		}
	}
}

func (s *session) offerSkills() {
	skills, err := s.hub.engine.OfferSkills(s.pawn, skillOfferSize)
	if err != nil || len(skills) == 0 {
		return
	}
	s.push(protocol.EventSkillOffer, protocol.SkillOffer{Skills: skills})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			IncrementWSMessages()
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(protocol.MaxFrameSize + 1)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("read")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.Decode(frame)
		if err == nil {
			err = s.inSeq.Accept(env.Seq)
		}
		if err == nil {
			err = s.dispatch(env)
		}
		if err != nil {
			code := sessionErrorCode(err)
			RecordFrameRejected(code)
			s.push(protocol.EventError, protocol.Error{Code: code, Message: err.Error()})
		}
	}
}

// dispatch routes one decoded frame to the engine.
func (s *session) dispatch(env protocol.Envelope) error {
	e := s.hub.engine

	switch env.Event {
	case protocol.EventMove:
		var m protocol.Move
		if err := env.Bind(&m); err != nil {
			return err
		}
		return e.Move(s.pawn, m)

	case protocol.EventActivate:
		if !s.hub.commands.Allow(s.pawn) {
			return errRateLimited
		}
		var req ability.ActivationRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		return e.Activate(s.pawn, req)

	case protocol.EventTargetData:
		if !s.hub.commands.Allow(s.pawn) {
			return errRateLimited
		}
		var sub ability.Submission
		if err := env.Bind(&sub); err != nil {
			return err
		}
		return e.SubmitTargetData(s.pawn, sub)

	case protocol.EventCancel:
		var c protocol.Cancel
		if err := env.Bind(&c); err != nil {
			return err
		}
		return e.Cancel(s.pawn, c.Spec)

	case protocol.EventSelectSlot:
		var sel protocol.SelectSlot
		if err := env.Bind(&sel); err != nil {
			return err
		}
		if err := e.SelectSlot(s.pawn, sel.Slot); err != nil {
			return err
		}
		s.pushSpecs()
		s.hub.publishLedger(s.pawn)
		return nil

	case protocol.EventChooseSkill:
		var c protocol.ChooseSkill
		if err := env.Bind(&c); err != nil {
			return err
		}
		if err := e.ChooseSkill(s.pawn, c.Skill); err != nil {
			return err
		}
		s.pushSpecs()
		s.hub.publishLedger(s.pawn)
		s.offerSkills()
		return nil

	case protocol.EventReload:
		n, err := e.Reload(s.pawn)
		if err != nil {
			return err
		}
		s.push(protocol.EventReloaded, protocol.Reloaded{Rounds: n})
		return nil
	}
	return errors.Wrap(protocol.ErrUnknownEvent, env.Event)
}

func (s *session) pushSpecs() {
	if specs, err := s.hub.engine.Specs(s.pawn); err == nil {
		s.push(protocol.EventSpecs, specs)
	}
}

var errRateLimited = errors.New("api: combat command rate exceeded")

// sessionErrorCode extends protocol.ErrorCode with engine failures.
func sessionErrorCode(err error) string {
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, game.ErrArenaFull):
		return "arena_full"
	case errors.Is(err, game.ErrPawnDead):
		return "dead"
	case errors.Is(err, game.ErrUnknownPawn):
		return "unknown_pawn"
	case errors.Is(err, ability.ErrUnknownSkill), errors.Is(err, ability.ErrSkillNotOffered):
		return "skill"
	}
	return protocol.ErrorCode(err)
}
