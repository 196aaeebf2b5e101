package types

import "github.com/DoyleJ11/rally-backend/internal/engine"

// Inbound message kinds.
const (
	ClientChat        = "chat"
	ClientStartGame   = "start_game"
	ClientRestartGame = "restart_game"
	ClientShot        = "shot"
)

// Outbound message kinds.
const (
	ServerPlayerJoined    = "player_joined"
	ServerSpectatorJoined = "spectator_joined"
	ServerPlayerLeft      = "player_left"
	ServerSpectatorLeft   = "spectator_left"
	ServerChatMessage     = "chat_message"
	ServerGameStarted     = "game_started"
	ServerGameRestarted   = "game_restarted"
	ServerShotResult      = "shot_result"
	ServerError           = "error"
)

// ClientMessage:
//
//	chat:                    message
//	start_game/restart_game: (no fields)
//	shot:                    skill, message (free-text intent)
type ClientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Skill   string `json:"skill,omitempty"`
}

// ServerMessage is every outbound frame. Which fields are set depends on
// Type; shot_result frames carry a ShotReport inline.
type ServerMessage struct {
	Type        string        `json:"type"`
	Username    string        `json:"username,omitempty"`
	Message     string        `json:"message,omitempty"`
	IsSpectator bool          `json:"is_spectator,omitempty"`
	Timestamp   int64         `json:"timestamp,omitempty"` // unix millis
	Players     []string      `json:"players,omitempty"`
	Spectators  []string      `json:"spectators,omitempty"`
	GameState   *engine.State `json:"game_state,omitempty"`
	*ShotReport
}

type ShotReport struct {
	Player      string             `json:"player"`
	Skill       string             `json:"skill"`
	Result      engine.Outcome     `json:"result"`
	Defense     *engine.Outcome    `json:"defense,omitempty"`
	Description string             `json:"description"`
	Scored      bool               `json:"scored"`
	Scorer      string             `json:"scorer,omitempty"`
	ScoringTeam engine.Team        `json:"scoring_team,omitempty"`
	ScoreReason engine.ScoreReason `json:"score_reason,omitempty"`
	GameOver    bool               `json:"game_over,omitempty"`
}

func Error(msg string) ServerMessage {
	return ServerMessage{Type: ServerError, Message: msg}
}
