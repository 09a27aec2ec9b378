// Package proxy is a plain HTTP/1.x forward proxy that reports every
// completed exchange to an Observer. CONNECT tunnels are relayed blind.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
)

// Server accepts proxy connections on a loopback port.
type Server struct {
	listener net.Listener
	addr     string

	http1Handler   *http1Handler
	connectHandler *connectHandler

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closed      atomic.Bool
	running     atomic.Bool
	activeConns sync.Map
}

// NewServer listens on 127.0.0.1:port (0 picks a free port). Bodies handed
// to obs are cut to maxBodyBytes when it is positive.
func NewServer(port int, maxBodyBytes int, timeouts TimeoutConfig, obs Observer) (*Server, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		listener: listener,
		addr:     listener.Addr().String(),
		http1Handler: &http1Handler{
			observer:     obs,
			maxBodyBytes: maxBodyBytes,
			decodeBodies: true,
			timeouts:     timeouts,
		},
		connectHandler: &connectHandler{timeouts: timeouts},
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// SetDecodeBodies toggles response body decoding. Call before Serve.
func (s *Server) SetDecodeBodies(enabled bool) {
	s.http1Handler.decodeBodies = enabled
}

// Addr returns the listener address, e.g. "127.0.0.1:8181".
func (s *Server) Addr() string {
	return s.addr
}

// WaitReady blocks until Serve has entered its accept loop.
func (s *Server) WaitReady(ctx context.Context) error {
	for !s.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
	return nil
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() error {
	s.running.Store(true)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || s.ctx.Err() != nil {
				return nil
			}
			log.Printf("proxy: accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	s.activeConns.Store(conn, struct{}{})
	defer func() {
		s.activeConns.Delete(conn)
		_ = conn.Close()
	}()

	br := bufio.NewReader(conn)
	peek, err := br.Peek(8)
	if err != nil {
		return
	}

	if bytes.HasPrefix(peek, []byte("PRI * HT")) {
		log.Printf("proxy: h2c not supported, closing connection from %s", conn.RemoteAddr())
		return
	} else if bytes.HasPrefix(peek, []byte("CONNECT ")) {
		s.connectHandler.Handle(s.ctx, conn, br)
		return
	}
	s.http1Handler.Handle(s.ctx, conn, br)
}

// Shutdown stops accepting connections and waits for in-flight ones until
// ctx expires, then closes whatever remains.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	_ = s.listener.Close()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.activeConns.Range(func(key, _ any) bool {
			if conn, ok := key.(net.Conn); ok {
				_ = conn.Close()
			}
			return true
		})
		<-done
	}
	return nil
}
