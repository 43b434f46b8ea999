package systems

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestNewJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("expected ErrNoWorkers, got %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Errorf("expected ErrNegativeChannelSize, got %v", err)
	}
}

func TestJobSystemRun(t *testing.T) {
	js, err := NewJobSystem(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	var ran atomic.Int32
	boom := errors.New("boom")
	work := make([]func() error, 8)
	for i := range work {
		work[i] = func() error {
			ran.Add(1)
			if i == 5 {
				return boom
			}
			return nil
		}
	}
	errs := js.Run(work)
	if ran.Load() != 8 {
		t.Errorf("ran %d jobs, want 8", ran.Load())
	}
	for i, err := range errs {
		if (i == 5) != (err != nil) {
			t.Errorf("errs[%d] = %v", i, err)
		}
	}
}

func TestJobSystemCallbacks(t *testing.T) {
	js, err := NewJobSystem(1, 4)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan string, 2)
	js.Submit(JobTask{
		OnStart:              func() error { return nil },
		OnComplete:           func() { done <- "complete" },
		OnCompletionCallback: func() { done <- "callback" },
	})
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if a, b := <-done, <-done; a != "complete" || b != "callback" {
		t.Errorf("callbacks ran as %s, %s", a, b)
	}
}
