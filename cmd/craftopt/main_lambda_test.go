//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"craft-optimizer/internal/server"
)

const lambdaRequest = `{"progress": 200, "quality": 1000, "base_progress": 100, "base_quality": 100,
	"cp": 50, "durability": 30, "job_level": 100,
	"actions": ["BasicSynthesis", "BasicTouch", "Innovation"]}`

func TestHandler(t *testing.T) {
	event := events.LambdaFunctionURLRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(lambdaRequest)),
		IsBase64Encoded: true,
	}
	resp, err := handler(context.Background(), event)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status %d: %s", resp.StatusCode, resp.Body)
	}
	var out server.SolveResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatal(err)
	}
	if out.Quality != 150 || !out.Optimal {
		t.Errorf("got quality %d optimal=%v, want 150 optimal", out.Quality, out.Optimal)
	}
}

func TestHandlerErrors(t *testing.T) {
	cases := []struct {
		name  string
		event events.LambdaFunctionURLRequest
		want  string
	}{
		{"bad base64", events.LambdaFunctionURLRequest{Body: "%%%", IsBase64Encoded: true}, "invalid base64"},
		{"bad json", events.LambdaFunctionURLRequest{Body: "{"}, "malformed JSON"},
		{"bad action", events.LambdaFunctionURLRequest{Body: strings.Replace(lambdaRequest, "Innovation", "Inovation", 1)}, "did you mean"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := handler(context.Background(), tc.event)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != 400 || !strings.Contains(resp.Body, tc.want) {
				t.Errorf("got %d %s, want 400 containing %q", resp.StatusCode, resp.Body, tc.want)
			}
		})
	}
}
