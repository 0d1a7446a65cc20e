// Package safeexit runs registered shutdown hooks when the process is asked to stop.
package safeexit

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Everpoint/sGis-sub002/logger"
)

var signals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	done  bool
	exit  func(code int)
}

// New returns a SafeExit that terminates the process with os.Exit after the hooks ran.
func New() *SafeExit {
	return &SafeExit{exit: os.Exit}
}

// Register adds f to the hooks. Hooks run in registration order.
func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Run runs the hooks once. Later calls do nothing.
func (s *SafeExit) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	for _, f := range s.funcs {
		f()
	}
}

func (s *SafeExit) handle(sig os.Signal) {
	logger.L().Warnf("received signal %s, stopping", sig)
	s.Run()
	s.exit(0)
}

// ListenSignal blocks handling termination signals. Start it on its own goroutine.
func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, signals...)
	for sig := range sigs {
		s.handle(sig)
	}
}
