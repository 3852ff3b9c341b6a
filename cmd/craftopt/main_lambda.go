//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"craft-optimizer/internal/config"
	"craft-optimizer/internal/request"
	"craft-optimizer/internal/search"
	"craft-optimizer/internal/server"
)

// deadlineMargin is kept free before the invocation deadline to write the
// response with the best rotation found so far.
const deadlineMargin = 2 * time.Second

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

var solver = newSolver()

func newSolver() *server.Server {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.DefaultConfig()
	if path := os.Getenv("CRAFTOPT_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Error("config not loaded, using defaults", "error", err)
		} else {
			cfg = loaded
		}
	}
	// No cache: the file system does not outlive the execution environment.
	cfg.CachePath = ""
	return server.New(cfg, nil, log)
}

func handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}

	args, err := request.Parse(body)
	if err != nil {
		return errResp(400, err.Error())
	}

	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-deadlineMargin))
		defer cancel()
	}
	resp, err := solver.Solve(ctx, &args, nil)
	if err != nil {
		if errors.Is(err, search.ErrInvalidRequest) {
			return errResp(400, err.Error())
		}
		return errResp(500, err.Error())
	}

	respJSON, _ := json.Marshal(resp)
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	lambda.Start(handler)
}
