package shutdown

import (
	"context"
	"testing"
)

func TestContextCancelledByParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := Context(parent)
	defer stop()

	cancel()
	<-ctx.Done()
	if ctx.Err() == nil {
		t.Fatal("expected context error after parent cancel")
	}
}

func TestSignalsNotEmpty(t *testing.T) {
	if len(signals) == 0 {
		t.Fatal("no termination signals registered")
	}
}
