// Package census periodically logs how many rooms are running and who is
// in them.
package census

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/session"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const takeTimeout = 5 * time.Second

// Lister is the part of the hub a census needs.
type Lister interface {
	List(ctx context.Context) ([]*session.Session, error)
}

type Report struct {
	Rooms      int
	ByStatus   map[engine.Status]int
	Players    int
	Spectators int
}

// Take asks every running room for its view. Rooms that stop while being
// counted are skipped.
func Take(ctx context.Context, l Lister) (Report, error) {
	sessions, err := l.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list rooms: %w", err)
	}

	r := Report{ByStatus: make(map[engine.Status]int)}
	for _, s := range sessions {
		v, err := s.Describe(ctx)
		if err != nil {
			continue
		}
		r.Rooms++
		r.ByStatus[v.State.Status]++
		r.Players += len(v.Players)
		r.Spectators += len(v.Spectators)
	}
	return r, nil
}

// Start schedules a census every interval. The caller owns the returned
// scheduler and must Shutdown it.
func Start(l Lister, interval time.Duration, log *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	log = log.Named("census")

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), takeTimeout)
			defer cancel()
			r, err := Take(ctx, l)
			if err != nil {
				log.Warn("census failed", zap.Error(err))
				return
			}
			log.Info("room census",
				zap.Int("rooms", r.Rooms),
				zap.Int("waiting", r.ByStatus[engine.StatusWaiting]),
				zap.Int("playing", r.ByStatus[engine.StatusPlaying]),
				zap.Int("finished", r.ByStatus[engine.StatusFinished]),
				zap.Int("players", r.Players),
				zap.Int("spectators", r.Spectators),
			)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule census: %w", err)
	}

	sched.Start()
	return sched, nil
}
