package coalescer

import (
	"testing"
	"time"
)

func TestSpinGateStartsClosed(t *testing.T) {
	g := newSpinGate()

	done := make(chan struct{})
	go func() {
		g.wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned before the gate was opened")
	case <-time.After(20 * time.Millisecond):
	}

	g.release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after release")
	}
}

func TestSpinGateStartStopIdempotent(t *testing.T) {
	g := newSpinGate()

	g.startSpin()
	g.startSpin() // must not panic on double-close

	waitReturns(t, g)

	g.stopSpin()
	g.stopSpin() // must not panic on double-create

	if g.spinning {
		t.Fatal("gate should be closed after stopSpin")
	}
}

func waitReturns(t *testing.T, g *spinGate) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		g.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait blocked while gate should be open")
	}
}
