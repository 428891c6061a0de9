package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moibraahim/gymnation-task/internal/models"
)

type scriptedClient struct {
	calls     int
	responses []func(ctx context.Context) (*Response, error)
}

func (s *scriptedClient) Complete(ctx context.Context, _ Request) (*Response, error) {
	step := s.responses[s.calls]
	s.calls++
	return step(ctx)
}

func reply(text string) func(context.Context) (*Response, error) {
	return func(context.Context) (*Response, error) { return &Response{Content: text}, nil }
}

func fail(err error) func(context.Context) (*Response, error) {
	return func(context.Context) (*Response, error) { return nil, err }
}

func TestPolicyRetriesOnce(t *testing.T) {
	stub := &scriptedClient{responses: []func(context.Context) (*Response, error){
		fail(errors.New("502 bad gateway")),
		reply("hello"),
	}}
	client := WithPolicy(stub, Policy{Timeout: time.Second, MaxRetries: 1}, nil)

	resp, err := client.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if resp.Content != "hello" || stub.calls != 2 {
		t.Fatalf("unexpected result %q after %d calls", resp.Content, stub.calls)
	}
}

func TestPolicyGivesUpAfterRetry(t *testing.T) {
	stub := &scriptedClient{responses: []func(context.Context) (*Response, error){
		fail(errors.New("boom")),
		fail(errors.New("boom again")),
		reply("never reached"),
	}}
	client := WithPolicy(stub, Policy{Timeout: time.Second, MaxRetries: 5}, nil)

	_, err := client.Complete(context.Background(), Request{})
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected at most one retry, got %d calls", stub.calls)
	}
}

func TestPolicyTimesOutEachAttempt(t *testing.T) {
	hang := func(ctx context.Context) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	stub := &scriptedClient{responses: []func(context.Context) (*Response, error){hang, hang}}
	client := WithPolicy(stub, Policy{Timeout: 20 * time.Millisecond, MaxRetries: 1}, nil)

	start := time.Now()
	_, err := client.Complete(context.Background(), Request{})
	if !errors.Is(err, models.ErrModelUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout surfaced as model unavailable, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("policy did not bound the call")
	}
}

func TestPolicyTreatsEmptyReplyAsFailure(t *testing.T) {
	stub := &scriptedClient{responses: []func(context.Context) (*Response, error){
		reply("  "),
		reply(""),
	}}
	client := WithPolicy(stub, Policy{Timeout: time.Second, MaxRetries: 1}, nil)

	if _, err := client.Complete(context.Background(), Request{}); !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}

func TestParseArguments(t *testing.T) {
	args, ok := ParseArguments(`{"booking_id":"BK1"}`)
	if !ok || args["booking_id"] != "BK1" {
		t.Fatalf("unexpected parse result %v %v", args, ok)
	}
	if _, ok := ParseArguments(`{"booking_id":`); ok {
		t.Fatalf("expected malformed json to fail")
	}
	if _, ok := ParseArguments(`["not","an","object"]`); ok {
		t.Fatalf("expected non-object json to fail")
	}
}
