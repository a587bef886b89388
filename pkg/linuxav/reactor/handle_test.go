//go:build linux

package reactor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camrig/pkg/linuxav/reactor"
	"github.com/smazurov/camrig/pkg/linuxav/reactor/reactortest"
)

func TestHandleSingleRegistrationPerSuspension(t *testing.T) {
	rec := reactortest.New()
	closes := 0
	h := reactor.NewHandle(7, rec, func(int) error { closes++; return nil })

	var woken atomic.Int32
	first := reactor.WakerFunc(func() { woken.Add(1) })
	second := reactor.WakerFunc(func() { woken.Add(10) })

	if err := h.Arm(first); err != nil {
		t.Fatalf("Arm() error: %v", err)
	}
	if err := h.Arm(second); err != nil {
		t.Fatalf("second Arm() error: %v", err)
	}
	if got := rec.Registrations(7); got != 1 {
		t.Fatalf("registrations before wake = %d, want 1", got)
	}

	// The most recent waker is the one resumed.
	if !rec.Fire(7) {
		t.Fatal("no pending registration")
	}
	if got := woken.Load(); got != 10 {
		t.Errorf("woken = %d, want 10", got)
	}
	if h.Armed() {
		t.Error("handle still armed after wake")
	}

	// A new suspension after the wake registers again.
	if err := h.Arm(first); err != nil {
		t.Fatalf("Arm() after wake error: %v", err)
	}
	if got := rec.Registrations(7); got != 2 {
		t.Errorf("registrations after second suspension = %d, want 2", got)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
}

func TestHandleWake(t *testing.T) {
	rec := reactortest.New()
	h := reactor.NewHandle(5, rec, func(int) error { return nil })

	// Nothing pending.
	h.Wake()

	w := reactor.NewChanWaker()
	if err := h.Arm(w); err != nil {
		t.Fatalf("Arm() error: %v", err)
	}
	h.Wake()
	select {
	case <-w:
	default:
		t.Fatal("Wake() did not resume the pending waker")
	}
	if h.Armed() {
		t.Error("handle still armed after Wake")
	}

	// The next suspension registers again; the stale registration is
	// replaced and resumes the new waker.
	next := reactor.NewChanWaker()
	if err := h.Arm(next); err != nil {
		t.Fatalf("Arm() after Wake error: %v", err)
	}
	if got := rec.Registrations(5); got != 2 {
		t.Errorf("registrations = %d, want 2", got)
	}
	rec.Fire(5)
	select {
	case <-next:
	default:
		t.Fatal("reactor wake did not reach the new waker")
	}
	select {
	case <-w:
		t.Error("old waker woken twice")
	default:
	}
}

func TestHandleCloseOnce(t *testing.T) {
	rec := reactortest.New()
	closes := 0
	h := reactor.NewHandle(3, rec, func(int) error { closes++; return nil })

	if err := h.Arm(reactor.NewChanWaker()); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := h.Close(); !errors.Is(err, reactor.ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if got := rec.Deregistrations(3); got != 1 {
		t.Errorf("deregistrations = %d, want 1", got)
	}
	if rec.Pending(3) {
		t.Error("registration still pending after Close")
	}
	if err := h.Arm(reactor.NewChanWaker()); !errors.Is(err, reactor.ErrClosed) {
		t.Errorf("Arm() after Close = %v, want ErrClosed", err)
	}
}

func TestHandleCloseWithoutRegistration(t *testing.T) {
	rec := reactortest.New()
	h := reactor.NewHandle(4, rec, func(int) error { return nil })

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got := rec.Deregistrations(4); got != 0 {
		t.Errorf("deregistrations = %d, want 0", got)
	}
}

func TestHandleCloseReportsCloserError(t *testing.T) {
	boom := errors.New("boom")
	h := reactor.NewHandle(5, reactortest.New(), func(int) error { return boom })

	if err := h.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() = %v, want wrapped boom", err)
	}
}

func TestHandleArmRegisterFailure(t *testing.T) {
	rec := reactortest.New()
	rec.RegisterErr = errors.New("full")
	h := reactor.NewHandle(6, rec, func(int) error { return nil })

	if err := h.Arm(reactor.NewChanWaker()); !errors.Is(err, rec.RegisterErr) {
		t.Fatalf("Arm() = %v, want register error", err)
	}
	if h.Armed() {
		t.Error("handle armed after failed registration")
	}
}

func TestBlock(t *testing.T) {
	rec := reactortest.New()
	h := reactor.NewHandle(9, rec, func(int) error { return nil })

	polls := 0
	poll := func(w reactor.Waker) (string, bool, error) {
		polls++
		if polls < 3 {
			return "", false, h.Arm(w)
		}
		return "frame", true, nil
	}

	done := make(chan string)
	go func() {
		v, err := reactor.Block[string](context.Background(), poll)
		if err != nil {
			t.Errorf("Block() error: %v", err)
		}
		done <- v
	}()

	for i := 0; i < 2; i++ {
		waitPending(t, rec, 9)
		rec.Fire(9)
	}

	select {
	case v := <-done:
		if v != "frame" {
			t.Errorf("Block() = %q, want frame", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Block did not return")
	}
	if got := rec.Registrations(9); got != 2 {
		t.Errorf("registrations = %d, want 2", got)
	}
}

func TestBlockContextCancel(t *testing.T) {
	rec := reactortest.New()
	h := reactor.NewHandle(10, rec, func(int) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		_, err := reactor.Block[int](ctx, func(w reactor.Waker) (int, bool, error) {
			return 0, false, h.Arm(w)
		})
		errCh <- err
	}()

	waitPending(t, rec, 10)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Block() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Block did not return after cancel")
	}
}

func TestBlockPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := reactor.Block[int](context.Background(), func(reactor.Waker) (int, bool, error) {
		return 0, false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Block() = %v, want boom", err)
	}
}

func waitPending(t *testing.T, rec *reactortest.Recorder, fd int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !rec.Pending(fd) {
		if time.Now().After(deadline) {
			t.Fatalf("fd %d never registered", fd)
		}
		time.Sleep(time.Millisecond)
	}
}
