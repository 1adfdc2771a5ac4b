package main

import (
	"context"
	"testing"
	"time"

	"github.com/brady131313/rschat/internal/chatstate"
	"github.com/brady131313/rschat/internal/protocol"
)

func TestRunMetricsStopsOnContextCancel(t *testing.T) {
	state := chatstate.New()
	alice := chatstate.NewPeer("a:1")
	state.Apply(protocol.Hello{Username: "alice"}, alice)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunMetrics(ctx, state, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunMetrics did not stop after context cancellation")
	}
}
