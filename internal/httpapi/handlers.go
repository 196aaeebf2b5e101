package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/profile"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type createRoomRequest struct {
	Mode string `json:"mode"`
}

type roomSummary struct {
	RoomID     string        `json:"room_id"`
	Mode       engine.Mode   `json:"mode"`
	Players    []string      `json:"players"`
	Spectators []string      `json:"spectators"`
	Status     engine.Status `json:"status"`
}

type saveProfileRequest struct {
	Username string         `json:"username"`
	Skills   map[string]int `json:"skills"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createRoomRequest{Mode: string(engine.ModeSingles)}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}
		mode, ok := engine.ParseMode(req.Mode)
		if !ok {
			http.Error(w, "unknown mode", http.StatusBadRequest)
			return
		}

		s, err := h.Create(r.Context(), mode)
		if err != nil {
			log.Error("create room failed", zap.Error(err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			RoomID string      `json:"room_id"`
			Mode   engine.Mode `json:"mode"`
		}{RoomID: s.ID(), Mode: s.Mode()})
	}
}

func ListRooms(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := h.List(r.Context())
		if err != nil {
			log.Error("list rooms failed", zap.Error(err))
			http.Error(w, "failed to list rooms", http.StatusInternalServerError)
			return
		}

		rooms := make([]roomSummary, 0, len(sessions))
		for _, s := range sessions {
			v, err := s.Describe(r.Context())
			if err != nil {
				// stopped between listing and describing
				continue
			}
			rooms = append(rooms, roomSummary{
				RoomID:     v.ID,
				Mode:       v.Mode,
				Players:    v.Players,
				Spectators: v.Spectators,
				Status:     v.State.Status,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Rooms []roomSummary `json:"rooms"`
		}{Rooms: rooms})
	}
}

func Skills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Skills []string `json:"skills"`
	}{Skills: engine.Skills})
}

// GetProfile answers with the stored profile, or an all-zero one for
// usernames that never saved.
func GetProfile(store profile.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := profile.NormalizeUsername(chi.URLParam(r, "username"))
		if err := profile.ValidateUsername(username); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := store.Load(r.Context(), username)
		switch {
		case errors.Is(err, profile.ErrNotFound):
			p = profile.Default(username)
		case err != nil:
			log.Error("load profile failed", zap.String("username", username), zap.Error(err))
			http.Error(w, "failed to load profile", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func SaveProfile(store profile.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		p := profile.Profile{Username: profile.NormalizeUsername(req.Username), Skills: req.Skills}
		if err := profile.Validate(p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := store.Save(r.Context(), p); err != nil {
			log.Error("save profile failed", zap.String("username", p.Username), zap.Error(err))
			http.Error(w, "failed to save profile", http.StatusInternalServerError)
			return
		}
		log.Info("profile saved", zap.String("username", p.Username))

		writeJSON(w, http.StatusOK, struct {
			Status   string `json:"status"`
			Username string `json:"username"`
		}{Status: "ok", Username: p.Username})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
