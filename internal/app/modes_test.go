package app

import (
	"context"
	"testing"
	"time"
)

func TestWithShutdownSignals_FollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := withShutdownSignals(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected signal context to follow its parent")
	}
}

func TestNotifySystemd_OutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	// Must not panic or block when no service manager listens
	notifySystemd("READY=1")
}
