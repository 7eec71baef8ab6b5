package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"payflow/internal/payflow"
)

// spinner is the terminal progress indicator.
type spinner struct {
	w io.Writer

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newSpinner(w io.Writer) *spinner {
	return &spinner{w: w}
}

func (s *spinner) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.spin(s.stop, s.done)
}

func (s *spinner) Hide() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *spinner) spin(stop, done chan struct{}) {
	defer close(done)
	frames := `|/-\`
	t := time.NewTicker(150 * time.Millisecond)
	defer t.Stop()

	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%c Processing payment...", frames[i%len(frames)])
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-t.C:
		}
	}
}

type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Notify(_ context.Context, notice payflow.Notice) {
	mark := "x"
	if notice.Success() {
		mark = "ok"
	}
	fmt.Fprintf(n.w, "[%s] %s\n", mark, notice.Message)
}
