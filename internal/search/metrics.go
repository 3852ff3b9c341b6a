package search

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"craft-optimizer/internal/sim"
)

var tracer = otel.Tracer("craft-optimizer.search")

var (
	// solvesTotal counts finished solves by outcome
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "craftopt_solves_total",
		Help: "Finished solves by outcome",
	}, []string{"outcome"})

	// solveDuration tracks wall time per solve
	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "craftopt_solve_duration_seconds",
		Help:    "Solve duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
	})

	nodesExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "craftopt_nodes_expanded_total",
		Help: "Search nodes expanded across all solves",
	})

	suggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "craftopt_suggestions_total",
		Help: "Improving solutions found during search",
	})

	activeSolves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "craftopt_active_solves",
		Help: "Solves currently running",
	})

	// memoExhausted counts workers whose bound evaluator hit its memo limit
	memoExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "craftopt_bound_memo_exhausted_total",
		Help: "Workers that fell back to the closed-form bound",
	})
)

func startSolveSpan(ctx context.Context, id string, s *sim.Settings, req *Request) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search.Solve",
		trace.WithAttributes(
			attribute.String("solve.id", id),
			attribute.Int64("craft.max_progress", int64(s.MaxProgress)),
			attribute.Int64("craft.max_quality", int64(s.MaxQuality)),
			attribute.Int64("craft.cp", int64(s.MaxCP)),
			attribute.Int64("craft.durability", int64(s.MaxDurability)),
			attribute.Bool("craft.adversarial", s.Adversarial),
			attribute.Bool("search.backload", req.BackloadProgress),
			attribute.Bool("search.unsound", req.UnsoundBranchPruning),
		),
	)
}

func setSolveSpanResult(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.Int64("search.nodes", int64(res.Nodes)),
		attribute.Int("solution.steps", len(res.Actions)),
		attribute.Int64("solution.quality", int64(res.Quality)),
		attribute.Bool("search.optimal", res.Optimal),
		attribute.Bool("search.cancelled", res.Cancelled),
	)
}

func outcome(res *Result) string {
	switch {
	case res.Cancelled:
		return "cancelled"
	case len(res.Actions) == 0:
		return "no_solution"
	}
	return "solved"
}
