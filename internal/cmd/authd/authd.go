// Package authd wires the auth subsystem into a runnable HTTP service.
package authd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/api/httpapi"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/code"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/email"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/magiclink"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/service"
	authsqlite "github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage/sqlite"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

const cleanupInterval = 5 * time.Minute

// Config holds authd command configuration.
type Config struct {
	HTTPAddr string
	DBPath   string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr: envOrDefault(lookup, []string{"WEBMUSEUM_AUTH_HTTP_ADDR"}, "localhost:8080"),
		DBPath:   envOrDefault(lookup, []string{"WEBMUSEUM_AUTH_DB_PATH"}, filepath.Join("data", "auth.db")),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The auth HTTP server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the auth SQLite database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Server hosts the auth HTTP service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *authsqlite.Store
	service    *service.AuthService
	log        logging.Logger
}

// New creates a configured auth server listening on the configured address.
func New(cfg Config) (*Server, error) {
	log := logging.Default().With("service", "authd")

	store, err := openAuthStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var sender email.Sender
	emailConfig := email.LoadConfigFromEnv()
	if emailConfig.Configured() {
		smtpSender, err := email.NewSMTPSender(emailConfig)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("configure smtp sender: %w", err)
		}
		sender = smtpSender
	}

	codes := code.NewChannel(code.LoadConfigFromEnv(), store, store, sender, log)
	links := magiclink.NewChannel(magiclink.LoadConfigFromEnv(), store, store, sender, log)
	authService := service.NewAuthService(store, store, store, store, log)

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	mux := http.NewServeMux()
	httpapi.NewServer(codes, links, authService, log).RegisterRoutes(mux)

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
		store:      store,
		service:    authService,
		log:        log,
	}, nil
}

// Addr returns the listener address for the auth server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore(serverCtx)

	s.startCleanup(serverCtx)

	s.log.Info(serverCtx, "auth server listening", "addr", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// startCleanup periodically removes expired ceremony sessions so abandoned
// passkey flows do not accumulate.
func (s *Server) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.service.CleanupExpiredCeremonies(ctx); err != nil {
					s.log.Warn(ctx, "cleanup expired ceremonies", "error", err)
				}
			}
		}
	}()
}

func openAuthStore(path string) (*authsqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "auth.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.log.Error(ctx, "close auth store", "error", err)
	}
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
