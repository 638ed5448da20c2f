// Package assign decides, for every requirement, the single outline node it
// belongs to, or that it belongs nowhere with enough confidence.
package assign

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/score"
	"github.com/ppiankov/reqmap/internal/worker"
)

// scoreEpsilon is the distance under which two scores are tied
const scoreEpsilon = 1e-9

// Options tunes an Assigner
type Options struct {
	// Threshold is the minimum score for an assignment; a score equal to it assigns
	Threshold float64
	// MaxDegradedRatio is the highest tolerated share of failed similarity lookups
	MaxDegradedRatio float64
	// Workers bounds concurrent requirement scoring. 0 means runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

// Assigner scores requirements against every node of an outline and picks a winner
type Assigner struct {
	scorer  *score.Scorer
	outline *outline.Outline
	opts    Options
	logger  *slog.Logger
}

// New creates an assigner over a loaded outline
func New(scorer *score.Scorer, o *outline.Outline, opts Options) *Assigner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{scorer: scorer, outline: o, opts: opts, logger: logger}
}

// Outcome is the result of assigning a batch of requirements
type Outcome struct {
	// Log has one record per requirement, in input order
	Log []model.Assignment
	// Unassignable lists requirements below threshold, in input order
	Unassignable []model.Unassignable
	// SimilarityCalls counts semantic lookups; SimilarityFailures those that degraded to 0
	SimilarityCalls    int64
	SimilarityFailures int64
}

// Assigned returns the assigned records of the log, in input order
func (o *Outcome) Assigned() []model.Assignment {
	out := make([]model.Assignment, 0, len(o.Log))
	for _, a := range o.Log {
		if a.Status == model.StatusAssigned {
			out = append(out, a)
		}
	}
	return out
}

// Decision is the assignment of one requirement with its scoring detail
type Decision struct {
	Assignment model.Assignment
	Scores     []score.NodeScore // One per outline entry, in document order
	Calls      int64
	Failures   int64
}

// Assign decides every requirement concurrently. The result does not depend
// on the number of workers. Cancelling ctx aborts the run with ctx.Err();
// too many degraded similarity lookups abort it with *model.DegradedRunError.
func (a *Assigner) Assign(ctx context.Context, reqs []model.Requirement) (*Outcome, error) {
	start := time.Now()

	jobs := make([]worker.Job, len(reqs))
	for i, r := range reqs {
		jobs[i] = &decideJob{assigner: a, req: r}
	}

	results := worker.Run(ctx, a.opts.Workers, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{Log: make([]model.Assignment, 0, len(reqs))}
	for i, r := range results {
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("assign %q: %w", reqs[i].ID, err)
		}
		d := r.(*decideResult).decision

		out.Log = append(out.Log, d.Assignment)
		out.SimilarityCalls += d.Calls
		out.SimilarityFailures += d.Failures

		if d.Assignment.Status == model.StatusUnassignable {
			out.Unassignable = append(out.Unassignable, model.Unassignable{
				Requirement: reqs[i],
				BestNodeID:  d.Assignment.BestNodeID,
				BestScore:   d.Assignment.Score,
				Threshold:   a.opts.Threshold,
			})
		}
	}

	if out.SimilarityCalls > 0 {
		ratio := float64(out.SimilarityFailures) / float64(out.SimilarityCalls)
		if out.SimilarityFailures > 0 {
			a.logger.Warn("similarity degraded during run",
				"failures", out.SimilarityFailures,
				"calls", out.SimilarityCalls,
				"ratio", ratio,
				"ceiling", a.opts.MaxDegradedRatio,
			)
		}
		if ratio > a.opts.MaxDegradedRatio {
			return nil, &model.DegradedRunError{
				Calls:    out.SimilarityCalls,
				Failures: out.SimilarityFailures,
				Ceiling:  a.opts.MaxDegradedRatio,
			}
		}
	}

	a.logger.Info("assignment complete",
		"requirements", len(reqs),
		"unassignable", len(out.Unassignable),
		"nodes", a.outline.Len(),
		"duration", time.Since(start),
	)
	return out, nil
}

// Decide scores one requirement against every outline node and applies the
// tie-break and threshold policy
func (a *Assigner) Decide(ctx context.Context, req model.Requirement) (*Decision, error) {
	sub := a.scorer.Prepare(req)
	entries := a.outline.Entries()

	d := &Decision{Scores: make([]score.NodeScore, 0, len(entries))}
	semanticOn := a.scorer.Weights().Semantic > 0

	for _, e := range entries {
		ns, err := a.scorer.ScoreSubject(ctx, sub, e)
		if err != nil {
			return nil, err
		}
		if semanticOn {
			d.Calls++
		}
		if ns.Degraded {
			d.Failures++
		}
		d.Scores = append(d.Scores, ns)
	}

	if len(d.Scores) == 0 {
		return nil, fmt.Errorf("%w: outline has no nodes", model.ErrMalformedOutline)
	}

	best := math.Inf(-1)
	for _, ns := range d.Scores {
		if ns.Total > best {
			best = ns.Total
		}
	}

	var tied []int
	for i, ns := range d.Scores {
		if ns.Total >= best-scoreEpsilon {
			tied = append(tied, i)
		}
	}

	winner, rule := a.breakTie(req, entries, d.Scores, tied)
	ws := d.Scores[winner]

	asg := model.Assignment{
		RequirementID: req.ID,
		BestNodeID:    ws.NodeID,
		Score:         ws.Total,
		Confidence:    a.scorer.Confidence(ws.Total),
		Rationale:     ws.Rationale(),
		TieBreak:      rule,
		Candidates:    len(tied),
		Degraded:      d.Failures > 0,
	}

	// The winner may sit up to scoreEpsilon below best; the tie group as a
	// whole is measured against the threshold
	if best >= a.opts.Threshold {
		asg.Status = model.StatusAssigned
		asg.TargetNodeID = ws.NodeID
	} else {
		asg.Status = model.StatusUnassignable
	}

	a.logger.Debug("requirement decided",
		"requirement", req.ID,
		"status", asg.Status,
		"node", ws.NodeID,
		"score", ws.Total,
		"candidates", len(tied),
		"tie_break", string(rule),
	)

	d.Assignment = asg
	return d, nil
}

// breakTie narrows equally scored candidates:
// (a) a category rule hit, (b) a firing safety rule for Critical or High
// requirements, (c) the deepest node, (d) the lowest outline number.
// It returns the winning index and the rule that settled the tie.
func (a *Assigner) breakTie(req model.Requirement, entries []outline.Entry, scores []score.NodeScore, tied []int) (int, model.TieBreakRule) {
	if len(tied) == 1 {
		return tied[0], model.TieBreakNone
	}

	narrow := func(keep func(i int) bool) []int {
		var out []int
		for _, i := range tied {
			if keep(i) {
				out = append(out, i)
			}
		}
		if len(out) == 0 {
			return tied
		}
		return out
	}

	tied = narrow(func(i int) bool { return scores[i].CategoryHit })
	if len(tied) == 1 {
		return tied[0], model.TieBreakCategory
	}

	if req.Priority.IsUrgent() {
		tied = narrow(func(i int) bool { return scores[i].SafetyHit })
		if len(tied) == 1 {
			return tied[0], model.TieBreakSafety
		}
	}

	deepest := 0
	for _, i := range tied {
		if entries[i].Depth > deepest {
			deepest = entries[i].Depth
		}
	}
	tied = narrow(func(i int) bool { return entries[i].Depth == deepest })
	if len(tied) == 1 {
		return tied[0], model.TieBreakDepth
	}

	sort.SliceStable(tied, func(x, y int) bool {
		ex, ey := entries[tied[x]], entries[tied[y]]
		if c := outline.CompareOutlineNumbers(ex.Node.OutlineNumber, ey.Node.OutlineNumber); c != 0 {
			return c < 0
		}
		return ex.Index < ey.Index
	})
	return tied[0], model.TieBreakOutlineNumber
}

type decideJob struct {
	assigner *Assigner
	req      model.Requirement
}

type decideResult struct {
	decision *Decision
	err      error
}

func (r *decideResult) GetError() error { return r.err }

func (j *decideJob) Execute(ctx context.Context) worker.Result {
	d, err := j.assigner.Decide(ctx, j.req)
	return &decideResult{decision: d, err: err}
}
