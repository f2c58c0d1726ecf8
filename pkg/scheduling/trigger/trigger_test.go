package trigger

import (
	"sync"
	"testing"
	"time"
)

func TestRapidSignalsCoalesceBeforeConsumption(t *testing.T) {
	d := NewDebouncer()
	for i := 0; i < 10; i++ {
		d.Signal()
	}
	if got := d.queue.Len(); got != 1 {
		t.Fatalf("expected 10 rapid signals to collapse to 1 pending item, got %d", got)
	}
}

func TestRunInvokesActionAndStopEndsIt(t *testing.T) {
	d := NewDebouncer()
	var once sync.Once
	ran := make(chan struct{})
	returned := make(chan struct{})

	go func() {
		d.Run(func() {
			once.Do(func() { close(ran) })
		})
		close(returned)
	}()

	d.Signal()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("action never ran")
	}

	d.Stop()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
