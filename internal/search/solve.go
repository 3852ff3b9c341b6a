// Package search finds the action sequence that completes a craft with the
// highest guaranteed quality.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"craft-optimizer/internal/config"
	"craft-optimizer/internal/sim"
)

// ErrInvalidRequest is returned, before any notification, for requests no
// search can start from.
var ErrInvalidRequest = errors.New("invalid solve request")

// Request describes one solve.
type Request struct {
	Settings sim.Settings
	// BackloadProgress tries quality actions before progress actions.
	BackloadProgress bool
	// UnsoundBranchPruning trades the optimality guarantee for speed.
	UnsoundBranchPruning bool
}

// Solution is a rotation and the outcome it guarantees.
type Solution struct {
	Actions []sim.Action `json:"actions"`
	// Quality is the objective value: quality capped at the target, and in
	// adversarial mode the worst case over condition histories.
	Quality  uint32 `json:"quality"`
	Progress uint32 `json:"progress"`
}

// Empty reports whether no rotation was found.
func (s Solution) Empty() bool { return len(s.Actions) == 0 }

// Result is what Solve returns after the final notification.
type Result struct {
	Solution
	Nodes   uint64        `json:"nodes"`
	Elapsed time.Duration `json:"elapsed"`
	// Optimal is set when the search ran to exhaustion with admissible pruning
	// and nothing promising was left beyond the step limit.
	Optimal   bool   `json:"optimal"`
	Cancelled bool   `json:"cancelled"`
	ID        string `json:"id"`
}

type options struct {
	cfg    config.Config
	logger *slog.Logger
}

// Option customizes a solve.
type Option func(*options)

// WithConfig replaces the default tuning.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Solve runs the search. Validation errors are returned before obs sees
// anything; otherwise obs.Start and obs.Finish are each called exactly once and
// the returned error is nil. Cancellation through ctx, the handle passed to
// Start, or the configured time limit ends the search early with the best
// rotation found so far.
func Solve(ctx context.Context, req Request, obs Observer, opts ...Option) (Result, error) {
	o := options{cfg: config.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	settings := req.Settings
	s := &settings
	if err := s.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if obs == nil {
		obs = Callbacks{}
	}

	id := uuid.NewString()
	log := o.logger.With("solve_id", id)
	ctx, span := startSolveSpan(ctx, id, s, &req)
	defer span.End()
	if o.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TimeLimit)
		defer cancel()
	}

	start := time.Now()
	activeSolves.Inc()
	defer activeSolves.Dec()

	rep := newReporter(obs)
	sh := newShared(rep)
	obs.Start(func() { sh.cancelled.Store(true) })
	stop := context.AfterFunc(ctx, func() { sh.cancelled.Store(true) })
	defer stop()
	if ctx.Err() != nil {
		sh.cancelled.Store(true)
	}
	rep.start()

	log.Debug("solve starting",
		"progress", s.MaxProgress, "quality", s.MaxQuality,
		"cp", s.MaxCP, "durability", s.MaxDurability,
		"level", s.JobLevel, "adversarial", s.Adversarial)

	best := solve(s, &req, o.cfg, sh, log)
	stop()

	rep.close()
	res := Result{
		Solution:  best,
		Nodes:     sh.nodes.Load(),
		Elapsed:   time.Since(start),
		Cancelled: sh.cancelled.Load(),
		ID:        id,
	}
	res.Optimal = !res.Cancelled && !req.UnsoundBranchPruning && !sh.stepLimited.Load()
	obs.Finish(best)

	solvesTotal.WithLabelValues(outcome(&res)).Inc()
	solveDuration.Observe(res.Elapsed.Seconds())
	setSolveSpanResult(span, &res)
	if res.Cancelled {
		span.SetStatus(codes.Error, "cancelled")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	log.Info("solve finished",
		"steps", len(best.Actions), "quality", best.Quality,
		"nodes", res.Nodes, "optimal", res.Optimal, "cancelled", res.Cancelled,
		"elapsed", res.Elapsed)
	return res, nil
}

// ── Coordinator ─────────────────────────────────────────────────────

// solve expands the root, hands the first-level branches to a pool of workers
// and returns the best rotation any of them found.
func solve(s *sim.Settings, req *Request, cfg config.Config, sh *shared, log *slog.Logger) Solution {
	order := actionOrder(s, req.BackloadProgress)
	root := rootNode(s)

	type branch struct {
		action sim.Action
		child  node
	}
	var branches []branch
	var best Solution
	sh.addNodes(1)
	for _, a := range order {
		child, ok := root.expand(a, s)
		if !ok {
			continue
		}
		switch child.status(s) {
		case complete:
			q := s.Objective(child.quality())
			if sh.offer(solutionScore(q, 1)) {
				best = Solution{Actions: []sim.Action{a}, Quality: q, Progress: child.progress()}
				sh.rep.suggest(best)
			}
			continue
		case broken:
			continue
		}
		branches = append(branches, branch{a, child})
	}

	numWorkers := min(cfg.WorkerCount(), len(branches))
	log.Debug("root expanded", "branches", len(branches), "workers", numWorkers)
	if numWorkers == 0 {
		return best
	}

	branchCh := make(chan int, len(branches))
	for i := range branches {
		branchCh <- i
	}
	close(branchCh)

	results := make([]Solution, numWorkers)
	var g errgroup.Group
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			eng := newEngine(s, req, cfg, order, sh)
			for idx := range branchCh {
				if sh.cancelled.Load() {
					break
				}
				eng.run(branches[idx].action, branches[idx].child)
				log.Debug("branch done", "worker", w, "action", branches[idx].action.String(),
					"best", scoreQuality(sh.best.Load()))
			}
			eng.flush()
			if eng.bestScore >= 0 {
				results[w] = eng.best
			}
			return nil
		})
	}
	_ = g.Wait()

	bestScore := int64(-1)
	if !best.Empty() {
		bestScore = solutionScore(best.Quality, len(best.Actions))
	}
	for _, r := range results {
		if r.Empty() {
			continue
		}
		if sc := solutionScore(r.Quality, len(r.Actions)); sc > bestScore {
			best, bestScore = r, sc
		}
	}
	return best
}
