// Package hub is the room directory: it creates rooms under fresh ids and
// hands out the running session for an id.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/narration"
	"github.com/DoyleJ11/rally-backend/internal/session"
	"go.uber.org/zap"
)

var (
	ErrClosed       = errors.New("hub closed")
	ErrIDsExhausted = errors.New("could not reserve a room id")
)

const (
	idDigits   = 6
	idAttempts = 32
)

type HubMsg interface{ isHubMsg() }

// CreateSession reserves a fresh id and starts its room in one step.
type CreateSession struct {
	Mode  engine.Mode
	Reply chan CreateResult
}

type CreateResult struct {
	Session *session.Session
	Err     error
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type ListSessions struct {
	Reply chan []*session.Session
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (ListSessions) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}

// Options configure every room the hub starts.
type Options struct {
	// NewRNG returns the generator for one room. Defaults to a randomly
	// seeded PCG.
	NewRNG           func() engine.RNG
	Narrator         narration.Narrator
	NarrationTimeout time.Duration
	Logger           *zap.Logger
	// NewID generates candidate room ids. Defaults to GenerateID.
	NewID func() (string, error)
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	opts     Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewRNG == nil {
		opts.NewRNG = func() engine.RNG { return engine.NewRandRNG(0) }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = GenerateID
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		opts:     opts,
		log:      opts.Logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// GenerateID returns a random six digit room id.
func GenerateID() (string, error) {
	const charset = "0123456789"

	id := make([]byte, idDigits)
	for i := range id {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		id[i] = charset[num.Int64()]
	}
	return string(id), nil
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				s, err := h.create(msg.Mode)
				msg.Reply <- CreateResult{Session: s, Err: err}

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // may be nil

			case ListSessions:
				ids := make([]string, 0, len(h.sessions))
				for id := range h.sessions {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				out := make([]*session.Session, 0, len(ids))
				for _, id := range ids {
					out = append(out, h.sessions[id])
				}
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(mode engine.Mode) (*session.Session, error) {
	for i := 0; i < idAttempts; i++ {
		id, err := h.opts.NewID()
		if err != nil {
			return nil, err
		}
		if _, taken := h.sessions[id]; taken {
			h.log.Debug("room id collision, regenerating", zap.String("room_id", id))
			continue
		}
		return h.start(id, mode), nil
	}
	return nil, ErrIDsExhausted
}

func (h *Hub) start(id string, mode engine.Mode) *session.Session {
	s := session.New(h.ctx, session.Config{
		ID:               id,
		Mode:             mode,
		RNG:              h.opts.NewRNG(),
		Narrator:         h.opts.Narrator,
		NarrationTimeout: h.opts.NarrationTimeout,
		Logger:           h.opts.Logger,
	})
	h.sessions[id] = s
	h.log.Info("room created", zap.String("room_id", id), zap.String("mode", string(mode)))
	return s
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		stop(s)
	}
	clear(h.sessions)
	h.cancel()
	h.log.Info("hub shut down")
}

func stop(s *session.Session) {
	select {
	case s.Inbox() <- session.Shutdown{}:
	case <-s.Done():
	}
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

func await[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, ErrClosed
	}
}

func (h *Hub) Create(ctx context.Context, mode engine.Mode) (*session.Session, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateSession{Mode: mode, Reply: reply}); err != nil {
		return nil, err
	}
	res, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	return res.Session, res.Err
}

// Get returns the room for id, or nil when there is none.
func (h *Hub) Get(ctx context.Context, id string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, GetSession{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// List returns the running rooms ordered by id.
func (h *Hub) List(ctx context.Context) ([]*session.Session, error) {
	reply := make(chan []*session.Session, 1)
	if err := h.send(ctx, ListSessions{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}
