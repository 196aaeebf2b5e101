// Package session runs one room: membership, the match state machine and
// fan-out of room events. All state is owned by a single goroutine fed
// through Inbox, so at most one action mutates a room at a time.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/narration"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("session closed")

const (
	inboxSize            = 64
	publishQueueSize     = 256
	defaultNarrationWait = 4 * time.Second
)

type Msg interface{ isSessionMsg() }

// Join attaches a connection. Outbox receives every room event from now on
// until the connection leaves, is superseded or the room shuts down; the
// room closes it at that point.
type Join struct {
	ConnID   string
	Username string
	Skills   map[string]int
	Outbox   chan types.ServerMessage
}

func (Join) isSessionMsg() {}

type Leave struct {
	ConnID   string
	Username string
}

func (Leave) isSessionMsg() {}

type FromClient struct {
	ConnID   string
	Username string
	Msg      types.ClientMessage
}

func (FromClient) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// View is a read-only copy of a room.
type View struct {
	ID         string
	Mode       engine.Mode
	Players    []string
	Spectators []string
	State      engine.State
}

type Config struct {
	ID               string
	Mode             engine.Mode
	RNG              engine.RNG
	Narrator         narration.Narrator
	NarrationTimeout time.Duration
	Logger           *zap.Logger
	Now              func() time.Time
}

type member struct {
	username string
	connID   string
	skills   map[string]int
}

type Session struct {
	id    string
	mode  engine.Mode
	inbox chan Msg

	state      engine.State
	players    []*member
	spectators []*member

	rng              engine.RNG
	narrator         narration.Narrator
	narrationTimeout time.Duration

	out *Broadcaster
	pub *publisher
	log *zap.Logger
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Mode == "" {
		cfg.Mode = engine.ModeSingles
	}
	if cfg.RNG == nil {
		cfg.RNG = engine.NewRandRNG(0)
	}
	if cfg.Narrator == nil {
		cfg.Narrator = narration.Disabled{}
	}
	if cfg.NarrationTimeout <= 0 {
		cfg.NarrationTimeout = defaultNarrationWait
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	log := cfg.Logger.With(zap.String("room_id", cfg.ID))
	out := NewBroadcaster(log)
	s := &Session{
		id:               cfg.ID,
		mode:             cfg.Mode,
		inbox:            make(chan Msg, inboxSize),
		state:            engine.NewState(),
		rng:              cfg.RNG,
		narrator:         cfg.Narrator,
		narrationTimeout: cfg.NarrationTimeout,
		out:              out,
		pub:              newPublisher(out, publishQueueSize),
		log:              log,
		now:              cfg.Now,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Mode() engine.Mode { return s.mode }

// Inbox exposes the room's queue to the transport and to tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the room loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues msg unless ctx ends or the room has shut down first.
func (s *Session) Send(ctx context.Context, msg Msg) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) Describe(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrClosed
	}
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.join(msg)

			case Leave:
				s.leave(msg)

			case FromClient:
				s.handle(msg)

			case GetState:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	s.cancel()
	s.pub.close()
	s.log.Info("room shut down")
}

func (s *Session) join(msg Join) {
	role := RoleSpectator
	if m := s.find(msg.Username); m != nil {
		// Same identity reconnecting: the newer connection wins.
		s.out.Remove(m.connID)
		m.connID = msg.ConnID
		m.skills = msg.Skills
		if s.isPlayer(m.username) {
			role = RolePlayer
		}
	} else {
		m := &member{username: msg.Username, connID: msg.ConnID, skills: msg.Skills}
		if s.admitsPlayer(msg.Username) {
			s.players = append(s.players, m)
			role = RolePlayer
		} else {
			s.spectators = append(s.spectators, m)
		}
	}
	s.out.Add(msg.ConnID, msg.Outbox)

	s.log.Info("member joined",
		zap.String("username", msg.Username),
		zap.String("conn_id", msg.ConnID),
		zap.String("role", string(role)),
	)

	typ := types.ServerPlayerJoined
	if role == RoleSpectator {
		typ = types.ServerSpectatorJoined
	}
	snap := s.state.Clone()
	s.pub.emit(types.ServerMessage{
		Type:       typ,
		Username:   msg.Username,
		Players:    names(s.players),
		Spectators: names(s.spectators),
		GameState:  &snap,
	})
}

// admitsPlayer reports whether a newcomer takes a player slot. While a
// match is playing only members of its teams get back in, so a dropped
// player can resume their side.
func (s *Session) admitsPlayer(username string) bool {
	if len(s.players) >= s.mode.Capacity() {
		return false
	}
	if s.state.Status != engine.StatusPlaying {
		return true
	}
	return s.state.TeamOf(username) != engine.TeamNone
}

func (s *Session) leave(msg Leave) {
	s.out.Remove(msg.ConnID)

	role, ok := s.remove(msg.Username, msg.ConnID)
	if !ok {
		// superseded connection, or never admitted
		return
	}
	s.log.Info("member left",
		zap.String("username", msg.Username),
		zap.String("conn_id", msg.ConnID),
		zap.String("role", string(role)),
	)

	typ := types.ServerPlayerLeft
	if role == RoleSpectator {
		typ = types.ServerSpectatorLeft
	}
	s.pub.emit(types.ServerMessage{
		Type:       typ,
		Username:   msg.Username,
		Players:    names(s.players),
		Spectators: names(s.spectators),
	})
}

func (s *Session) handle(msg FromClient) {
	m := s.find(msg.Username)
	if m == nil || m.connID != msg.ConnID {
		return
	}

	switch msg.Msg.Type {
	case types.ClientChat:
		s.chat(m, msg.Msg.Message)
	case types.ClientStartGame, types.ClientRestartGame:
		s.start(m, msg.Msg.Type == types.ClientRestartGame)
	case types.ClientShot:
		s.shot(m, msg.Msg)
	default:
		s.log.Debug("ignoring unknown action", zap.String("type", msg.Msg.Type), zap.String("username", m.username))
	}
}

func (s *Session) chat(m *member, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.pub.emit(types.ServerMessage{
		Type:        types.ServerChatMessage,
		Username:    m.username,
		Message:     text,
		IsSpectator: !s.isPlayer(m.username),
		Timestamp:   s.now().UnixMilli(),
	})
}

func (s *Session) start(m *member, restart bool) {
	if !s.isPlayer(m.username) {
		s.reject(m, engine.ErrNotPlayer)
		return
	}
	next, err := engine.Start(s.state, s.mode, names(s.players), s.rng)
	if err != nil {
		s.reject(m, err)
		return
	}
	s.state = next

	typ := types.ServerGameStarted
	if restart {
		typ = types.ServerGameRestarted
	}
	s.log.Info("match started",
		zap.Strings("team_a", next.TeamA),
		zap.Strings("team_b", next.TeamB),
		zap.String("server", next.CurrentServer),
		zap.Bool("restart", restart),
	)
	snap := next.Clone()
	s.pub.emit(types.ServerMessage{Type: typ, Username: m.username, GameState: &snap})
}

func (s *Session) shot(m *member, cm types.ClientMessage) {
	if !s.isPlayer(m.username) {
		s.reject(m, engine.ErrNotPlayer)
		return
	}

	skill := strings.TrimSpace(cm.Skill)
	shot := engine.Shot{
		Player:             m.username,
		Skill:              skill,
		Proficiency:        clampProficiency(m.skills[skill]),
		DefenseProficiency: s.defenseProficiency(skill),
	}
	res, next, err := engine.ApplyShot(s.state, shot, s.rng)
	if err != nil {
		s.reject(m, err)
		return
	}
	s.state = next

	s.log.Info("shot resolved",
		zap.String("username", m.username),
		zap.String("skill", skill),
		zap.String("quality", string(res.Outcome.Quality)),
		zap.Int("final_roll", res.Outcome.FinalRoll),
		zap.Bool("scored", res.Scored),
		zap.Int("score_a", next.ScoreA),
		zap.Int("score_b", next.ScoreB),
	)
	if res.MatchOver {
		s.log.Info("match finished", zap.Int("score_a", next.ScoreA), zap.Int("score_b", next.ScoreB))
	}

	snap := next.Clone()
	msg := types.ServerMessage{
		Type:      types.ServerShotResult,
		Message:   cm.Message,
		GameState: &snap,
		ShotReport: &types.ShotReport{
			Player:      m.username,
			Skill:       skill,
			Result:      res.Outcome,
			Defense:     res.Defense,
			Scored:      res.Scored,
			Scorer:      res.Scorer,
			ScoringTeam: res.ScoringTeam,
			ScoreReason: res.Reason,
			GameOver:    res.MatchOver,
		},
	}
	req := narration.Request{
		Player:  m.username,
		Skill:   skill,
		Outcome: res.Outcome,
		ScoreA:  next.ScoreA,
		ScoreB:  next.ScoreB,
		Intent:  cm.Message,
		Scored:  res.Scored,
		Reason:  res.Reason,
	}

	// Narration runs after the commit and off the room loop.
	ctx, narrator, wait, log := s.ctx, s.narrator, s.narrationTimeout, s.log
	s.pub.emitAsync(func() types.ServerMessage {
		msg.Description = narration.Describe(ctx, narrator, wait, req, log)
		return msg
	})
}

// defenseProficiency averages the defenders' counter-skill level. Only
// team members still registered as players count.
func (s *Session) defenseProficiency(attack string) int {
	counter := engine.CounterSkill(attack)
	sum, n := 0, 0
	for _, name := range s.state.Members(s.state.CurrentTeam.Opponent()) {
		for _, p := range s.players {
			if p.username == name {
				sum += clampProficiency(p.skills[counter])
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func (s *Session) reject(m *member, err error) {
	s.log.Debug("action rejected", zap.String("username", m.username), zap.Error(err))
	s.pub.emitTo(m.connID, types.Error(err.Error()))
}

func (s *Session) view() View {
	return View{
		ID:         s.id,
		Mode:       s.mode,
		Players:    names(s.players),
		Spectators: names(s.spectators),
		State:      s.state.Clone(),
	}
}

func (s *Session) find(username string) *member {
	for _, m := range s.players {
		if m.username == username {
			return m
		}
	}
	for _, m := range s.spectators {
		if m.username == username {
			return m
		}
	}
	return nil
}

func (s *Session) isPlayer(username string) bool {
	for _, m := range s.players {
		if m.username == username {
			return true
		}
	}
	return false
}

func (s *Session) remove(username, connID string) (Role, bool) {
	for i, m := range s.players {
		if m.username == username && m.connID == connID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return RolePlayer, true
		}
	}
	for i, m := range s.spectators {
		if m.username == username && m.connID == connID {
			s.spectators = append(s.spectators[:i], s.spectators[i+1:]...)
			return RoleSpectator, true
		}
	}
	return "", false
}

func names(ms []*member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.username)
	}
	return out
}

func clampProficiency(v int) int {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}
