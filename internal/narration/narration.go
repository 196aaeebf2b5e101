// Package narration produces one-line commentary for resolved shots.
package narration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("narration disabled")

// Request is everything a commentator may use to describe one shot.
type Request struct {
	Player  string
	Skill   string
	Outcome engine.Outcome
	ScoreA  int
	ScoreB  int
	Intent  string
	Scored  bool
	Reason  engine.ScoreReason
}

type Narrator interface {
	Describe(ctx context.Context, req Request) (string, error)
}

// Disabled always fails, so every shot gets the fallback text.
type Disabled struct{}

func (Disabled) Describe(context.Context, Request) (string, error) { return "", ErrDisabled }

var qualityLines = map[engine.Quality]string{
	engine.QualityCriticalFail:    "A costly error, straight into the net!",
	engine.QualityLow:             "A weak reply, the opening is there for the taking.",
	engine.QualityNormal:          "A steady return keeps the rally alive.",
	engine.QualityHigh:            "Beautiful placement, real pressure on the other side!",
	engine.QualityCriticalSuccess: "Flawless! Nobody is touching that one!",
}

var reasonLines = map[engine.ScoreReason]string{
	engine.ReasonOpponentError: "Point to the other side.",
	engine.ReasonUnreturnable:  "No way back from that, point won.",
	engine.ReasonPerfectSmash:  "A perfect smash ends the rally.",
}

// Fallback is the local commentary used whenever the narrator fails. It
// depends only on the quality bucket and the scoring outcome.
func Fallback(req Request) string {
	line, ok := qualityLines[req.Outcome.Quality]
	if !ok {
		line = req.Skill + " played."
	}
	if req.Scored {
		if r, ok := reasonLines[req.Reason]; ok {
			line += " " + r
		}
	}
	return line
}

// Describe asks n for commentary, waiting at most timeout. Any error,
// timeout or empty answer yields Fallback(req); Describe never fails.
func Describe(ctx context.Context, n Narrator, timeout time.Duration, req Request, log *zap.Logger) string {
	if n == nil {
		return Fallback(req)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := n.Describe(ctx, req)
		done <- answer{text: text, err: err}
	}()

	select {
	case a := <-done:
		text := strings.TrimSpace(a.text)
		if a.err == nil && text != "" {
			return text
		}
		if a.err != nil && !errors.Is(a.err, ErrDisabled) {
			log.Warn("narration failed, using fallback", zap.String("skill", req.Skill), zap.Error(a.err))
		}
	case <-ctx.Done():
		log.Warn("narration timed out, using fallback", zap.String("skill", req.Skill), zap.Duration("timeout", timeout))
	}
	return Fallback(req)
}
