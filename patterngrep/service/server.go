package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-appsec/patterngrep/patterngrep/config"
	"github.com/go-appsec/patterngrep/patterngrep/service/match"
	"github.com/go-appsec/patterngrep/patterngrep/service/monitor"
	"github.com/go-appsec/patterngrep/patterngrep/service/proxy"
	"github.com/go-appsec/patterngrep/patterngrep/service/store"
	"github.com/go-appsec/patterngrep/patterngrep/service/view"
)

const (
	shutdownTimeout = 10 * time.Second
	lockFileName    = "service.lock"
)

// Server runs the capture proxy, the monitor and the MCP server.
type Server struct {
	flags      ServeFlags
	cfg        *config.Config
	configPath string
	mcpPort    int
	proxyPort  int

	controller *monitor.Controller
	inspector  *view.Inspector
	proxy      *proxy.Server
	mcpServer  *mcpServer
	lock       *instanceLock
	logFile    io.Closer

	started    chan struct{}
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a server from parsed flags. Nothing listens until Run.
func NewServer(flags ServeFlags) (*Server, error) {
	return &Server{
		flags:      flags,
		started:    make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}, nil
}

// WaitTillStarted blocks until Run has started listening or failed.
func (s *Server) WaitTillStarted() {
	<-s.started
}

// Run starts all components and blocks until ctx ends, a signal arrives or
// RequestShutdown is called.
func (s *Server) Run(ctx context.Context) error {
	markStarted := sync.OnceFunc(func() { close(s.started) })
	defer markStarted()

	if err := s.setupLogging(); err != nil {
		return err
	}
	log.Printf("patterngrep service starting (version=%s)", config.Version)

	if err := s.loadOrCreateConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lock, err := acquireInstanceLock(filepath.Join(filepath.Dir(s.configPath), lockFileName))
	if err != nil {
		return err
	}
	s.lock = lock

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	matchOpts := match.Options{Syntax: s.cfg.MatchEngine, Timeout: s.cfg.MatchTimeout()}
	s.controller = monitor.New(store.NewCaptureStore(), monitor.WithMatchOptions(matchOpts))
	s.inspector = view.NewInspector(s.controller.Store())
	s.watchCaptures()

	if s.flags.Pattern != "" {
		if err := s.controller.Arm(s.flags.Pattern); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("--pattern: %w", err)
		}
	}

	if err := s.startProxy(); err != nil {
		_ = s.shutdown()
		return err
	}

	s.mcpServer = newMCPServer(s)
	if err := s.mcpServer.Start(s.mcpPort); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	markStarted()
	log.Printf("MCP server listening on http://%s/mcp", s.mcpServer.Addr())
	s.printEndpoints()

	select {
	case <-ctx.Done():
		log.Printf("context cancelled, initiating shutdown")
	case sig := <-sigCh:
		log.Printf("received signal %v, initiating shutdown", sig)
	case <-s.shutdownCh:
		log.Printf("shutdown requested")
	}
	return s.shutdown()
}

// RequestShutdown stops a running server.
func (s *Server) RequestShutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// ProxyAddr returns the capture proxy address once started.
func (s *Server) ProxyAddr() string {
	if s.proxy == nil {
		return ""
	}
	return s.proxy.Addr()
}

// MCPAddr returns the MCP listener address once started.
func (s *Server) MCPAddr() string {
	if s.mcpServer == nil {
		return ""
	}
	return s.mcpServer.Addr()
}

func (s *Server) setupLogging() error {
	if s.flags.LogFile == "" {
		return nil
	}
	f, err := os.OpenFile(s.flags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	s.logFile = f
	return nil
}

// loadOrCreateConfig loads config and applies CLI flag overrides.
// Precedence: CLI flags > config file > defaults
func (s *Server) loadOrCreateConfig() error {
	s.configPath = s.flags.ConfigPath
	if s.configPath == "" {
		s.configPath = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreatePath(s.configPath)
	if err != nil {
		return err
	}

	if s.flags.MatchEngine != "" {
		cfg.MatchEngine = s.flags.MatchEngine
	}
	s.mcpPort = cfg.MCPPort
	if s.flags.MCPPort != portUnset {
		s.mcpPort = s.flags.MCPPort
	}
	s.proxyPort = cfg.ProxyPort
	if s.flags.ProxyPort != portUnset {
		s.proxyPort = s.flags.ProxyPort
	}

	s.cfg = cfg
	return nil
}

func (s *Server) startProxy() error {
	timeouts := proxy.TimeoutConfig{
		DialTimeout:  s.cfg.Timeouts.Dial(),
		ReadTimeout:  s.cfg.Timeouts.Read(),
		WriteTimeout: s.cfg.Timeouts.Write(),
	}
	srv, err := proxy.NewServer(s.proxyPort, s.cfg.MaxBodyBytes, timeouts, s.controller)
	if err != nil {
		return fmt.Errorf("start proxy: %w", err)
	}
	srv.SetDecodeBodies(s.cfg.ShouldDecodeBodies())
	s.proxy = srv

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(); err != nil {
			log.Printf("proxy: server error: %v", err)
		}
	}()
	return nil
}

// watchCaptures drops the operator's selection whenever the store is
// cleared.
func (s *Server) watchCaptures() {
	events, unsubscribe := s.controller.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Kind == monitor.EventCleared {
					s.inspector.Invalidate(ev.Generation)
				}
			case <-s.shutdownCh:
				return
			}
		}
	}()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.mcpServer != nil {
		if err := s.mcpServer.Close(ctx); err != nil {
			log.Printf("MCP server shutdown error: %v", err)
		}
	}
	if s.proxy != nil {
		if err := s.proxy.Shutdown(ctx); err != nil {
			log.Printf("proxy: shutdown error: %v", err)
		}
	}
	s.RequestShutdown()
	s.wg.Wait()
	s.lock.release()

	log.Printf("patterngrep service stopped")
	if s.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = s.logFile.Close()
	}
	return nil
}

// printEndpoints tells the operator where to point the browser and agent.
func (s *Server) printEndpoints() {
	mcpURL := fmt.Sprintf("http://%s/mcp", s.mcpServer.Addr())

	_, _ = fmt.Fprintln(os.Stderr, "")
	_, _ = fmt.Fprintln(os.Stderr, "================================================================================")
	_, _ = fmt.Fprintf(os.Stderr, "Proxy Address: %s (plain HTTP; CONNECT is tunnelled without inspection)\n", s.proxy.Addr())
	_, _ = fmt.Fprintf(os.Stderr, "MCP Endpoint:  %s\n", mcpURL)
	_, _ = fmt.Fprintf(os.Stderr, "SSE Endpoint:  http://%s/sse (legacy)\n", s.mcpServer.Addr())
	_, _ = fmt.Fprintln(os.Stderr, "================================================================================")
	_, _ = fmt.Fprintln(os.Stderr, "")
}
