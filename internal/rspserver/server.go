// Package rspserver is the multi-target registry and listener loop sitting
// above the protocol core: one named target, one TCP listener, one
// Dispatcher per accepted connection.
package rspserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coredump-labs/rspd/internal/dispatcher"
	"github.com/coredump-labs/rspd/internal/monitor"
	"github.com/coredump-labs/rspd/internal/rspmetrics"
	"github.com/coredump-labs/rspd/internal/session"
	"github.com/coredump-labs/rspd/pkg/rsp"
	"github.com/coredump-labs/rspd/pkg/target"
)

// NamedTarget binds a target.Target to the name under which it is
// registered and given its own listener.
type NamedTarget struct {
	Name   string
	Target target.Target
}

// Server owns one listener per registered target, replacing the original
// process-global target linked list.
type Server struct {
	basePort       int
	readBufferSize int
	logger         rsp.Logger
	metrics        rspmetrics.Collector
	interp         monitor.Interpreter

	services []*service
}

type service struct {
	name     string
	port     int
	target   target.Target
	listener net.Listener
}

// Options configures a Server. Logger, Metrics, and Interp may be left
// nil, in which case diagnostics are discarded, metrics are a no-op, and
// qRcmd always reports no output.
type Options struct {
	BasePort       int
	ReadBufferSize int
	Logger         rsp.Logger
	Metrics        rspmetrics.Collector
	Interp         monitor.Interpreter
}

// New constructs a Server over targets, each assigned BasePort+i in
// registration order.
func New(targets []NamedTarget, opts Options) *Server {
	s := &Server{
		basePort:       opts.BasePort,
		readBufferSize: opts.ReadBufferSize,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		interp:         opts.Interp,
	}
	if s.logger == nil {
		s.logger = rsp.NopLogger
	}
	if s.metrics == nil {
		s.metrics = rspmetrics.Noop
	}
	if s.interp == nil {
		s.interp = monitor.Discard
	}
	for i, nt := range targets {
		s.services = append(s.services, &service{
			name:   nt.Name,
			port:   s.basePort + i,
			target: nt.Target,
		})
	}
	return s
}

// Serve binds every target's listener and runs accept loops until ctx is
// canceled. It returns once every listener has been closed and every
// accept loop has returned.
func (s *Server) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, svc := range s.services {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", svc.port))
		if err != nil {
			return fmt.Errorf("rspserver: listen on target %q: %w", svc.name, err)
		}
		svc.listener = ln

		wg.Add(1)
		go func(svc *service) {
			defer wg.Done()
			s.acceptLoop(ctx, svc)
		}(svc)
	}

	go func() {
		<-ctx.Done()
		for _, svc := range s.services {
			_ = svc.listener.Close()
		}
	}()

	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, svc *service) {
	for {
		conn, err := svc.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warnf("rspserver: accept on target %q: %v", svc.name, err)
				return
			}
		}
		go s.serveConn(ctx, svc, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, svc *service, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sess := session.New(conn, svc.target, s.readBufferSize, s.logger, s.metrics)

	logger := s.logger
	if sl, ok := s.logger.(rsp.SessionLogger); ok {
		logger = sl.WithSession(sess.ID.String())
	}

	d := dispatcher.New(sess, s.interp, logger)
	if err := d.Run(ctx); err != nil {
		var sfe *dispatcher.SessionFatalError
		if errors.As(err, &sfe) {
			logger.Errorf("rspserver: session %s on target %q ended fatally: %v", sess.ID, svc.name, err)
			return
		}
		logger.Warnf("rspserver: session %s on target %q ended: %v", sess.ID, svc.name, err)
	}
}
