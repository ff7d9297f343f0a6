package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func recvWithin(t *testing.T, sub *Subscription) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sub.Recv(ctx)
}

func TestHub_SendWithoutSubscribers(t *testing.T) {
	hub := NewHub(4)

	if n := hub.Send("early"); n != 0 {
		t.Errorf("Send() with no subscribers = %d, want 0", n)
	}

	sub := hub.Subscribe()
	defer sub.Close()

	hub.Send("late")
	msg, err := recvWithin(t, sub)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if msg != "late" {
		t.Errorf("Recv() = %q, want %q (messages sent before subscribing are not delivered)", msg, "late")
	}
}

func TestHub_LateSubscriberSeesOnlyLaterMessages(t *testing.T) {
	hub := NewHub(8)
	first := hub.Subscribe()
	defer first.Close()

	hub.Send("m1")
	hub.Send("m2")

	late := hub.Subscribe()
	defer late.Close()

	hub.Send("m3")

	for _, want := range []string{"m1", "m2", "m3"} {
		got, err := recvWithin(t, first)
		if err != nil || got != want {
			t.Fatalf("first.Recv() = %q, %v; want %q", got, err, want)
		}
	}

	got, err := recvWithin(t, late)
	if err != nil || got != "m3" {
		t.Fatalf("late.Recv() = %q, %v; want m3", got, err)
	}
}

func TestHub_SendReturnsSubscriberCount(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()

	if n := hub.Send("x"); n != 2 {
		t.Errorf("Send() = %d, want 2", n)
	}

	b.Close()
	b.Close() // idempotent
	if n := hub.Send("y"); n != 1 {
		t.Errorf("Send() after one close = %d, want 1", n)
	}
	a.Close()
	if hub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", hub.SubscriberCount())
	}
}

func TestHub_LaggedSubscriber(t *testing.T) {
	const capacity = 2048
	hub := NewHub(capacity)
	sub := hub.Subscribe()
	defer sub.Close()

	total := capacity + 100
	for i := 0; i < total; i++ {
		hub.Send(fmt.Sprintf("m%d", i))
	}

	_, err := recvWithin(t, sub)
	var lagged *LaggedError
	if !errors.As(err, &lagged) {
		t.Fatalf("Recv() error = %v, want *LaggedError", err)
	}
	if lagged.Missed != 100 {
		t.Errorf("Missed = %d, want 100", lagged.Missed)
	}

	// Resumes with the oldest message still in the ring.
	msg, err := recvWithin(t, sub)
	if err != nil {
		t.Fatalf("Recv() after lag error = %v", err)
	}
	if msg != "m100" {
		t.Errorf("Recv() after lag = %q, want m100", msg)
	}

	// And keeps going in order.
	msg, _ = recvWithin(t, sub)
	if msg != "m101" {
		t.Errorf("Recv() = %q, want m101", msg)
	}
}

func TestHub_SendNeverBlocks(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			hub.Send("spam")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a subscriber that never reads")
	}
}

func TestHub_RecvWakesOnSend(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	got := make(chan string, 1)
	go func() {
		msg, err := recvWithin(t, sub)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- msg
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Send("wake")

	select {
	case msg := <-got:
		if msg != "wake" {
			t.Errorf("Recv() = %q, want wake", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not wake on Send")
	}
}

func TestHub_RecvContextCancel(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Recv(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recv() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Send("pending")
	hub.Close()
	hub.Close()

	msg, err := recvWithin(t, sub)
	if err != nil || msg != "pending" {
		t.Fatalf("Recv() = %q, %v; want the pending message first", msg, err)
	}
	if _, err := recvWithin(t, sub); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv() after close error = %v, want ErrClosed", err)
	}
	if n := hub.Send("after"); n != 0 {
		t.Errorf("Send() after close = %d, want 0", n)
	}
}

func TestSubscription_RecvAfterClose(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	sub.Close()

	if _, err := recvWithin(t, sub); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv() on closed subscription error = %v, want ErrClosed", err)
	}
}

func TestHub_ConcurrentSubscribers(t *testing.T) {
	hub := NewHub(DefaultCapacity)
	const subscribers = 8
	const messages = 500

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		subs[i] = hub.Subscribe()
	}

	var wg sync.WaitGroup
	errs := make(chan error, subscribers)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			defer sub.Close()
			for i := 0; i < messages; i++ {
				msg, err := recvWithin(t, sub)
				if err != nil {
					errs <- err
					return
				}
				if want := fmt.Sprintf("m%d", i); msg != want {
					errs <- fmt.Errorf("got %q, want %q", msg, want)
					return
				}
			}
		}(sub)
	}

	for i := 0; i < messages; i++ {
		hub.Send(fmt.Sprintf("m%d", i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNewHub_DefaultCapacity(t *testing.T) {
	if got := NewHub(0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
}
