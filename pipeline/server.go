package pipeline

import (
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/galileosky/ingest-gateway/config"
)

// Server accepts TCP connections on cfg.TCPBind and spawns a Connection
// goroutine per accepted socket, each feeding the shared Queue.
type Server struct {
	cfg   *config.Config
	queue *Queue
	form  RecordForm
	log   logrus.FieldLogger

	listener net.Listener
}

// NewServer returns a Server ready to Listen.
func NewServer(cfg *config.Config, queue *Queue, form RecordForm, log logrus.FieldLogger) *Server {
	return &Server{cfg: cfg, queue: queue, form: form, log: log}
}

// ListenAndServe binds cfg.TCPBind and accepts connections until the
// listener is closed (via Close). It returns an error only when binding
// fails; other accept errors are retried with backoff, and it returns nil
// once the listener is closed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.TCPBind)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("bind", s.cfg.TCPBind).Info("gateway listening")

	// Transient accept errors (e.g. the process briefly running out of
	// file descriptors) are backed off exponentially rather than spun on,
	// the same protection dial/reconnect loops elsewhere in the corpus
	// give network calls; a fresh accept resets the backoff.
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 10 * time.Millisecond
	retry.MaxInterval = time.Second

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			wait := retry.NextBackOff()
			s.log.WithError(err).WithField("retry_in", wait).Warn("accept error")
			time.Sleep(wait)
			continue
		}
		retry.Reset()

		c := NewConnection(conn, s.queue, s.cfg, s.form, s.log)
		go c.Serve()
	}
}

// Close stops accepting new connections. In-flight connections run to
// completion on their own goroutines.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
