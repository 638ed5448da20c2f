// Package similarity rates how closely a requirement text relates to an
// outline heading. Strategies are pluggable; Guarded adds the timeout, rate
// limit, memoization and failure accounting every strategy runs under.
package similarity

import (
	"context"
	"errors"
)

// Strategy returns a similarity in [0,1] between a requirement text and the
// context text of an outline node
type Strategy interface {
	Name() string
	Similarity(ctx context.Context, requirement, heading string) (float64, error)
}

// Preparer is implemented by strategies that benefit from seeing all heading
// texts up front, such as embedding them in one batch
type Preparer interface {
	Prepare(ctx context.Context, texts []string) error
}

// ErrUnavailable wraps a similarity call that failed or timed out
var ErrUnavailable = errors.New("similarity unavailable")

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
