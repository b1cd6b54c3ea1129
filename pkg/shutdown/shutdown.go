package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/statica-dev/statica/pkg/logger"
)

// DrainTimeout is the hard deadline for in-flight handlers after the
// first termination signal.
const DrainTimeout = 5 * time.Second

// Supervisor watches for SIGINT/SIGTERM and drains the server. The first
// signal stops the accept loop and waits for handlers; a second signal
// during the drain exits immediately with status 130.
type Supervisor struct {
	log    *logger.Logger
	exit   func(int)
	signal chan os.Signal
}

// New builds a Supervisor logging to log.
func New(log *logger.Logger) *Supervisor {
	return &Supervisor{
		log:    log,
		exit:   os.Exit,
		signal: make(chan os.Signal, 2),
	}
}

// Watch blocks until a termination signal arrives, then shuts srv down.
// It returns once the server has drained; callers exit normally after.
func (s *Supervisor) Watch(srv *http.Server) {
	signal.Notify(s.signal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.signal)

	<-s.signal
	s.log.Info("Gracefully shutting down. Please wait...")

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("Drain incomplete: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-s.signal:
		s.log.Warn("Force-closing all open sockets...")
		srv.Close()
		s.exit(130)
	}
}
