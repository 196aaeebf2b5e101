// Package ws attaches websocket connections to rooms.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/profile"
	"github.com/DoyleJ11/rally-backend/internal/session"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	leaveTimeout = 2 * time.Second
)

const (
	msgRoomNotFound    = "room not found"
	msgProfileNotFound = "set up your player profile first"
	msgBadUsername     = "invalid username"
	msgUnavailable     = "room unavailable"
)

type Options struct {
	// IdleTimeout closes a connection that sends nothing for this long.
	IdleTimeout    time.Duration
	OriginPatterns []string
	Logger         *zap.Logger
}

func Handler(h *hub.Hub, profiles profile.Store, opts Options) http.HandlerFunc {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		username := profile.NormalizeUsername(chi.URLParam(r, "username"))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		connID := uuid.NewString()
		log := log.With(
			zap.String("room_id", roomID),
			zap.String("username", username),
			zap.String("conn_id", connID),
		)
		ctx := r.Context()

		if err := profile.ValidateUsername(username); err != nil {
			refuse(ctx, conn, msgBadUsername, log)
			return
		}
		s, err := h.Get(ctx, roomID)
		if err != nil {
			log.Warn("room lookup failed", zap.Error(err))
			refuse(ctx, conn, msgUnavailable, log)
			return
		}
		if s == nil {
			refuse(ctx, conn, msgRoomNotFound, log)
			return
		}
		p, err := profiles.Load(ctx, username)
		if err != nil {
			if !errors.Is(err, profile.ErrNotFound) {
				log.Error("profile load failed", zap.Error(err))
			}
			refuse(ctx, conn, msgProfileNotFound, log)
			return
		}

		out := make(chan types.ServerMessage, outboxSize)
		if err := s.Send(ctx, session.Join{ConnID: connID, Username: username, Skills: p.Skills, Outbox: out}); err != nil {
			refuse(ctx, conn, msgUnavailable, log)
			return
		}
		log.Info("connection attached")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer cancel()
			if err := s.Send(ctx, session.Leave{ConnID: connID, Username: username}); err != nil {
				log.Debug("leave not delivered", zap.Error(err))
			}
			log.Info("connection detached")
		}()

		// Writer: the room closes out when this connection is superseded or
		// the room stops, which also ends the reader below.
		go func() {
			for msg := range out {
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := wsjson.Write(wctx, conn, msg)
				cancel()
				if err != nil {
					log.Debug("write failed", zap.Error(err))
					conn.CloseNow()
					return
				}
			}
			conn.Close(websocket.StatusGoingAway, "session ended")
		}()

		for {
			rctx, cancel := context.WithTimeout(ctx, opts.IdleTimeout)
			_, data, err := conn.Read(rctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Debug("ignoring malformed frame", zap.Error(err))
				continue
			}
			if err := s.Send(ctx, session.FromClient{ConnID: connID, Username: username, Msg: cm}); err != nil {
				return
			}
		}
	}
}

// refuse reports an admission failure and closes with policy violation.
func refuse(ctx context.Context, conn *websocket.Conn, reason string, log *zap.Logger) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, conn, types.Error(reason)); err != nil {
		log.Debug("refusal not delivered", zap.Error(err))
	}
	log.Info("connection refused", zap.String("reason", reason))
	conn.Close(websocket.StatusPolicyViolation, reason)
}
