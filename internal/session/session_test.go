package session

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/narration"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper: receive one message with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return types.ServerMessage{} // unreachable
	}
}

func recvNoMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no message within %v, but got: %+v", within, msg)
	case <-time.After(within):
	}
}

func newTestSession(t *testing.T, mode engine.Mode, rng engine.RNG, n narration.Narrator) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Config{
		ID:               "123456",
		Mode:             mode,
		RNG:              rng,
		Narrator:         n,
		NarrationTimeout: 100 * time.Millisecond,
		Now:              func() time.Time { return time.UnixMilli(1700000000000) },
	})
}

type client struct {
	conn string
	name string
	out  chan types.ServerMessage
}

func join(t *testing.T, s *Session, name string, skills map[string]int) *client {
	t.Helper()
	c := &client{conn: "conn-" + name, name: name, out: make(chan types.ServerMessage, 16)}
	s.Inbox() <- Join{ConnID: c.conn, Username: name, Skills: skills, Outbox: c.out}
	return c
}

func (c *client) send(s *Session, msg types.ClientMessage) {
	s.Inbox() <- FromClient{ConnID: c.conn, Username: c.name, Msg: msg}
}

// drain reads n messages from c.
func (c *client) drain(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		recvMsg(t, c.out, time.Second)
	}
}

func describe(t *testing.T, s *Session) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.Describe(ctx)
	require.NoError(t, err)
	return v
}

type narratorFunc func(ctx context.Context, req narration.Request) (string, error)

func (f narratorFunc) Describe(ctx context.Context, req narration.Request) (string, error) {
	return f(ctx, req)
}

func TestSession_JoinClassifiesPlayersThenSpectators(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(), nil)

	alice := join(t, s, "alice", nil)
	msg := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerPlayerJoined, msg.Type)
	assert.Equal(t, []string{"alice"}, msg.Players)
	require.NotNil(t, msg.GameState)
	assert.Equal(t, engine.StatusWaiting, msg.GameState.Status)

	join(t, s, "bob", nil)
	assert.Equal(t, types.ServerPlayerJoined, recvMsg(t, alice.out, time.Second).Type)

	join(t, s, "carol", nil)
	msg = recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerSpectatorJoined, msg.Type)
	assert.Equal(t, "carol", msg.Username)
	assert.Equal(t, []string{"alice", "bob"}, msg.Players)
	assert.Equal(t, []string{"carol"}, msg.Spectators)
}

func TestSession_ServeScenario(t *testing.T) {
	// start: team A serves, first member serves; then a d20 of 15.
	rng := engine.NewScriptedRNG(0, 0, 15)
	s := newTestSession(t, engine.ModeSingles, rng, narration.Disabled{})

	alice := join(t, s, "alice", map[string]int{engine.SkillServe: 0})
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	started := recvMsg(t, bob.out, time.Second)
	require.Equal(t, types.ServerGameStarted, started.Type)
	require.NotNil(t, started.GameState)
	assert.Equal(t, []string{"alice"}, started.GameState.TeamA)
	assert.Equal(t, []string{"bob"}, started.GameState.TeamB)
	assert.Equal(t, engine.TeamA, started.GameState.CurrentTeam)
	assert.Equal(t, "alice", started.GameState.CurrentServer)
	alice.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe, Message: "deep to the corner"})
	for _, c := range []*client{alice, bob} {
		res := recvMsg(t, c.out, time.Second)
		require.Equal(t, types.ServerShotResult, res.Type)
		require.NotNil(t, res.ShotReport)
		assert.Equal(t, "alice", res.Player)
		assert.Equal(t, 15, res.Result.FinalRoll)
		assert.Equal(t, engine.QualityHigh, res.Result.Quality)
		assert.False(t, res.Scored)
		assert.Nil(t, res.Defense)
		assert.Equal(t, narration.Fallback(narration.Request{Outcome: res.Result}), res.Description)
		assert.Equal(t, "deep to the corner", res.Message)

		gs := res.GameState
		require.NotNil(t, gs)
		assert.Equal(t, engine.TeamB, gs.CurrentTeam)
		assert.Equal(t, "alice", gs.LastPlayer)
		assert.False(t, gs.IsFirstShot)
		assert.Equal(t, 1, gs.RallyCount)
		assert.Equal(t, 0, gs.ScoreA+gs.ScoreB)
	}
	assert.Zero(t, rng.Remaining())
}

func TestSession_SpectatorShotIsRejectedPrivately(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(0, 0), nil)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	carol := join(t, s, "carol", nil)
	alice.drain(t, 3)
	bob.drain(t, 2)
	carol.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	alice.drain(t, 1)
	bob.drain(t, 1)
	carol.drain(t, 1)
	before := describe(t, s).State

	carol.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
	msg := recvMsg(t, carol.out, time.Second)
	assert.Equal(t, types.ServerError, msg.Type)
	assert.Equal(t, engine.ErrNotPlayer.Error(), msg.Message)

	recvNoMsg(t, alice.out, 50*time.Millisecond)
	assert.Equal(t, before, describe(t, s).State)
}

func TestSession_RejectsWrongTurnAndUnstartedMatch(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(0, 0), nil)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)

	bob.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
	assert.Equal(t, engine.ErrNotInProgress.Error(), recvMsg(t, bob.out, time.Second).Message)

	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	alice.drain(t, 1)
	bob.drain(t, 1)

	bob.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
	msg := recvMsg(t, bob.out, time.Second)
	assert.Equal(t, types.ServerError, msg.Type)
	assert.Equal(t, engine.ErrWrongTurn.Error(), msg.Message)
	recvNoMsg(t, alice.out, 50*time.Millisecond)
}

func TestSession_StartNeedsFullRoster(t *testing.T) {
	s := newTestSession(t, engine.ModeDoubles, engine.NewScriptedRNG(), nil)
	alice := join(t, s, "alice", nil)
	join(t, s, "bob", nil)
	alice.drain(t, 2)

	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	msg := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, engine.ErrRosterIncomplete.Error(), msg.Message)
	assert.Equal(t, engine.StatusWaiting, describe(t, s).State.Status)
}

func TestSession_ChatTrimsAndDropsBlank(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(), nil)
	alice := join(t, s, "alice", nil)
	alice.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientChat, Message: "   "})
	alice.send(s, types.ClientMessage{Type: types.ClientChat, Message: "  good game "})

	msg := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerChatMessage, msg.Type)
	assert.Equal(t, "good game", msg.Message)
	assert.Equal(t, "alice", msg.Username)
	assert.False(t, msg.IsSpectator)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
	recvNoMsg(t, alice.out, 50*time.Millisecond)
}

func TestSession_SlowNarrationKeepsRoomResponsiveAndOrdered(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := narratorFunc(func(ctx context.Context, _ narration.Request) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "", ctx.Err()
	})

	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(0, 0, 12), stuck)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)
	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	alice.drain(t, 1)
	bob.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
	bob.send(s, types.ClientMessage{Type: types.ClientChat, Message: "nice"})

	// The room keeps answering while narration is pending.
	start := time.Now()
	v := describe(t, s)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, v.State.RallyCount)

	first := recvMsg(t, bob.out, time.Second)
	require.Equal(t, types.ServerShotResult, first.Type)
	assert.Equal(t, narration.Fallback(narration.Request{Outcome: first.Result}), first.Description)
	second := recvMsg(t, bob.out, time.Second)
	assert.Equal(t, types.ServerChatMessage, second.Type)
}

func TestSession_LeaveAndReconnect(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(), nil)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)

	// bob reconnects on a new connection; the old outbox is closed
	bob2 := &client{conn: "conn-bob-2", name: "bob", out: make(chan types.ServerMessage, 16)}
	s.Inbox() <- Join{ConnID: bob2.conn, Username: "bob", Outbox: bob2.out}
	msg := recvMsg(t, bob2.out, time.Second)
	assert.Equal(t, types.ServerPlayerJoined, msg.Type)
	assert.Equal(t, []string{"alice", "bob"}, msg.Players)
	_, open := <-bob.out
	assert.False(t, open)
	alice.drain(t, 1)

	// the stale connection leaving changes nothing
	s.Inbox() <- Leave{ConnID: bob.conn, Username: "bob"}
	recvNoMsg(t, alice.out, 50*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, describe(t, s).Players)

	s.Inbox() <- Leave{ConnID: bob2.conn, Username: "bob"}
	msg = recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerPlayerLeft, msg.Type)
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, []string{"alice"}, msg.Players)
}

func TestSession_ShutdownClosesOutboxes(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(), nil)
	alice := join(t, s, "alice", nil)
	alice.drain(t, 1)

	s.Inbox() <- Shutdown{}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("room did not stop")
	}
	recvNoMsg(t, alice.out, 100*time.Millisecond)

	_, err := s.Describe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_DroppedPlayerRejoinsTheirTeamMidMatch(t *testing.T) {
	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(0, 0, 0, 0), nil)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)
	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	alice.drain(t, 1)

	s.Inbox() <- Leave{ConnID: bob.conn, Username: "bob"}
	assert.Equal(t, types.ServerPlayerLeft, recvMsg(t, alice.out, time.Second).Type)

	// a stranger arriving mid-match only watches
	join(t, s, "carol", nil)
	assert.Equal(t, types.ServerSpectatorJoined, recvMsg(t, alice.out, time.Second).Type)

	bob2 := &client{conn: "conn-bob-2", name: "bob", out: make(chan types.ServerMessage, 16)}
	s.Inbox() <- Join{ConnID: bob2.conn, Username: "bob", Outbox: bob2.out}
	msg := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerPlayerJoined, msg.Type)
	assert.Equal(t, []string{"alice", "bob"}, msg.Players)
	assert.Equal(t, []string{"carol"}, msg.Spectators)

	v := describe(t, s)
	assert.Equal(t, engine.StatusPlaying, v.State.Status)
	assert.Equal(t, []string{"bob"}, v.State.TeamB)

	alice.send(s, types.ClientMessage{Type: types.ClientRestartGame})
	restarted := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerGameRestarted, restarted.Type)
}

// recvShot skips room events until the next shot_result.
func recvShot(t *testing.T, c *client) types.ServerMessage {
	t.Helper()
	for {
		msg := recvMsg(t, c.out, time.Second)
		if msg.Type == types.ServerShotResult {
			return msg
		}
	}
}

func TestSession_DefenseAveragesPresentDefendersCounterSkill(t *testing.T) {
	cases := []struct {
		name      string
		b2Leaves  bool
		wantSmash int
	}{
		// lift (60 + -31) / 2, integer division
		{name: "both defenders present", wantSmash: 14},
		{name: "departed defender is not counted", b2Leaves: true, wantSmash: 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// start: team A, first member serves; every roll a plain 10
			rng := engine.NewScriptedRNG(0, 0, 10, 10, 10, 10, 10)
			s := newTestSession(t, engine.ModeDoubles, rng, nil)
			a1 := join(t, s, "a1", nil)
			a2 := join(t, s, "a2", nil)
			b1 := join(t, s, "b1", map[string]int{engine.SkillLift: 60})
			b2 := join(t, s, "b2", map[string]int{engine.SkillLift: -31})

			a1.send(s, types.ClientMessage{Type: types.ClientStartGame})
			a1.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
			b1.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillClear})

			serve := recvShot(t, a2)
			require.Equal(t, "a1", serve.Player)
			assert.Nil(t, serve.Defense)

			// a1 and a2 never trained serve_receive
			returned := recvShot(t, a2)
			require.Equal(t, "b1", returned.Player)
			require.NotNil(t, returned.Defense)
			assert.Zero(t, returned.Defense.Proficiency)

			if tc.b2Leaves {
				s.Inbox() <- Leave{ConnID: b2.conn, Username: "b2"}
			}
			a2.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillSmash})

			smash := recvShot(t, a2)
			assert.Equal(t, "a2", smash.Player)
			require.NotNil(t, smash.Defense)
			assert.Equal(t, tc.wantSmash, smash.Defense.Proficiency)
			assert.False(t, smash.Scored)
			assert.Zero(t, rng.Remaining())
		})
	}
}

func TestSession_RejectionArrivesAfterPendingShotResult(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := narratorFunc(func(ctx context.Context, _ narration.Request) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "", ctx.Err()
	})

	s := newTestSession(t, engine.ModeSingles, engine.NewScriptedRNG(0, 0, 12), stuck)
	alice := join(t, s, "alice", nil)
	bob := join(t, s, "bob", nil)
	alice.drain(t, 2)
	bob.drain(t, 1)
	alice.send(s, types.ClientMessage{Type: types.ClientStartGame})
	alice.drain(t, 1)

	alice.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillServe})
	alice.send(s, types.ClientMessage{Type: types.ClientShot, Skill: engine.SkillClear})

	assert.Equal(t, types.ServerShotResult, recvMsg(t, alice.out, time.Second).Type)
	rejected := recvMsg(t, alice.out, time.Second)
	assert.Equal(t, types.ServerError, rejected.Type)
	assert.Equal(t, engine.ErrWrongTurn.Error(), rejected.Message)
}
