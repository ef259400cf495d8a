package pool

import (
	"context"
	"testing"
	"time"

	"github.com/nexusshell/nexus/internal/value"
)

func TestSubmitReturnsResult(t *testing.T) {
	p := New(2)
	fut := p.Submit(context.Background(), func(ctx context.Context) (value.Value, error) {
		return value.Int(42), nil
	})
	v, err := fut.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(v, value.Int(42)) {
		t.Fatalf("expected 42, got %v", v)
	}
	p.Shutdown()
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(2)
	boom := context.Canceled
	fut := p.Submit(context.Background(), func(ctx context.Context) (value.Value, error) {
		return value.Null(), boom
	})
	_, err := fut.Get(context.Background())
	if err != boom {
		t.Fatalf("expected propagated error, got %v", err)
	}
	p.Shutdown()
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := New(1)
	fut := p.Submit(context.Background(), func(ctx context.Context) (value.Value, error) {
		panic("boom")
	})
	_, err := fut.Get(context.Background())
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	p.Shutdown()
}

func TestGetRespectsCallerCancellation(t *testing.T) {
	p := New(1)
	block := make(chan struct{})
	fut := p.Submit(context.Background(), func(ctx context.Context) (value.Value, error) {
		<-block
		return value.Int(1), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.Get(ctx)
	if err == nil {
		t.Fatal("expected cancellation error before task completes")
	}
	close(block)
	p.Shutdown()
}

func TestFutureDoneReflectsCompletion(t *testing.T) {
	p := New(1)
	block := make(chan struct{})
	fut := p.Submit(context.Background(), func(ctx context.Context) (value.Value, error) {
		<-block
		return value.Int(1), nil
	})
	if fut.Done() {
		t.Fatal("expected future not yet done")
	}
	close(block)
	fut.Get(context.Background())
	if !fut.Done() {
		t.Fatal("expected future done after completion")
	}
	p.Shutdown()
}
