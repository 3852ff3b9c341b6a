//go:build !lambda

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"craft-optimizer/internal/request"
	"craft-optimizer/internal/rotation"
	"craft-optimizer/internal/search"
	"craft-optimizer/internal/server"
	"craft-optimizer/internal/sim"
	"craft-optimizer/internal/store"
)

type solveOptions struct {
	*rootOptions
	JSON      bool
	Macro     bool
	Notify    bool
	CachePath string
	TimeLimit time.Duration
	Workers   int
}

func newSolveCommand(root *rootOptions) *cobra.Command {
	opts := &solveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "solve [request.json]",
		Short: "Solve one request read from a file or stdin",
		Long: `Solve reads a JSON request and prints the best rotation as a table.

Interrupting the search prints the best rotation found so far.

Examples:
  craftopt solve request.json
  craftopt solve --macro --notify < request.json
  craftopt solve --json --time-limit 30s request.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runSolve(cmd, opts, path)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&opts.Macro, "macro", false, "print in-game macros after the table")
	cmd.Flags().BoolVar(&opts.Notify, "notify", false, "end every macro with an echo line")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "SQLite solution cache (overrides cache_path)")
	cmd.Flags().DurationVar(&opts.TimeLimit, "time-limit", 0, "stop after this long and print the best rotation so far")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "search goroutines (overrides workers)")
	return cmd
}

func readRequest(cmd *cobra.Command, path string) (request.Args, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return request.Args{}, fmt.Errorf("read request: %w", err)
	}
	return request.Parse(string(data))
}

func runSolve(cmd *cobra.Command, opts *solveOptions, path string) error {
	args, err := readRequest(cmd, path)
	if err != nil {
		return err
	}

	cfg := opts.cfg
	if opts.CachePath != "" {
		cfg.CachePath = opts.CachePath
	}
	if opts.TimeLimit > 0 {
		cfg.TimeLimit = opts.TimeLimit
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}

	var cache *store.Cache
	if cfg.CachePath != "" {
		cache, err = store.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer cache.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := search.Callbacks{
		OnSuggest: func(sol search.Solution) {
			opts.log.Info("improved", "quality", sol.Quality, "steps", len(sol.Actions))
		},
		OnProgress: func(nodes uint64) {
			opts.log.Debug("progress", "nodes", nodes)
		},
	}
	resp, err := server.New(cfg, cache, opts.log).Solve(ctx, &args, obs)
	if err != nil {
		return err
	}
	return printSolve(cmd.OutOrStdout(), opts, &args, &resp)
}

func printSolve(w io.Writer, opts *solveOptions, args *request.Args, resp *server.SolveResponse) error {
	if opts.JSON {
		if !opts.Macro {
			resp.Macros = nil
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Steps == 0 {
		fmt.Fprintln(w, "no rotation completes the craft")
		return nil
	}
	s := args.Settings()
	actions, err := parseNames(resp.Actions)
	if err != nil {
		return err
	}
	steps, err := rotation.Replay(&s, actions)
	if err != nil {
		return err
	}
	fmt.Fprint(w, rotation.Format(&s, steps))

	note := "optimal"
	switch {
	case resp.Cached:
		note = "optimal, cached"
	case resp.Cancelled:
		note = "search stopped early"
	case !resp.Optimal:
		note = "not proven optimal"
	}
	fmt.Fprintf(w, "%s, %d nodes in %.1fs\n", note, resp.Nodes, float64(resp.ElapsedMS)/1000)

	if opts.Macro {
		for i, m := range rotation.Macros(actions, s.ActionTable(), rotation.MacroOptions{Notify: opts.Notify}) {
			fmt.Fprintf(w, "\nMacro %d:\n%s", i+1, m)
		}
	}
	return nil
}

func parseNames(names []string) ([]sim.Action, error) {
	out := make([]sim.Action, len(names))
	for i, n := range names {
		a, err := request.ParseActionName(n)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}
