// Command server runs the Codenames-style realtime room server.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codenames/internal/config"
	"codenames/internal/http/middleware"
	"codenames/internal/logger"
	"codenames/internal/store"
	"codenames/internal/words"
	"codenames/internal/ws"
)

// cliConfig mirrors internal/config.Config but as flag/env-bindable
// fields, grounded in Seednode-partybox's cobra+pflag+viper config.go:
// one viper instance with a PARTYBOX-style env prefix, flags bound
// through BindPFlag/BindEnv, CLI wins over env wins over the
// flag-declared default.
type cliConfig struct {
	bind              string
	port              int
	wordsPath         string
	heartbeatInterval time.Duration
	clientTimeout     time.Duration
	logLevel          string
	logJSON           bool
	allowedOrigin     string
	publicBaseURL     string
}

func (c *cliConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.wordsPath == "" {
		return errors.New("--words is required")
	}
	return nil
}

func newCmd(cfg *cliConfig) *cobra.Command {
	defaults := config.Load()

	v := viper.New()
	v.SetEnvPrefix("CODENAMES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Realtime multi-room Codenames-style word-association server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	bindHost, bindPort := splitHostPort(defaults.ListenAddr)
	fs.StringVarP(&cfg.bind, "bind", "b", bindHost, "address to bind to (env: CODENAMES_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", bindPort, "port to listen on (env: CODENAMES_PORT)")
	fs.StringVar(&cfg.wordsPath, "words", defaults.WordsPath, "path to a newline-delimited word list (env: CODENAMES_WORDS)")
	fs.DurationVar(&cfg.heartbeatInterval, "heartbeat-interval", defaults.HeartbeatInterval, "interval between heartbeat pings (env: CODENAMES_HEARTBEAT_INTERVAL)")
	fs.DurationVar(&cfg.clientTimeout, "client-timeout", defaults.ClientTimeout, "idle duration before a session is timed out (env: CODENAMES_CLIENT_TIMEOUT)")
	fs.StringVar(&cfg.logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn, error (env: CODENAMES_LOG_LEVEL)")
	fs.BoolVar(&cfg.logJSON, "log-json", defaults.LogJSON, "emit logs as JSON (env: CODENAMES_LOG_JSON)")
	fs.StringVar(&cfg.allowedOrigin, "allowed-origin", defaults.AllowedOrigin, "restrict WebSocket upgrades to this Origin header; empty allows any (env: CODENAMES_ALLOWED_ORIGIN)")
	fs.StringVar(&cfg.publicBaseURL, "public-base-url", defaults.PublicBaseURL, "base ws:// URL used to build QR join links (env: CODENAMES_PUBLIC_BASE_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0", 8080
	}
	port := 8080
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}

func run(ctx context.Context, cfg *cliConfig) error {
	logger.Init(cfg.logLevel, cfg.logJSON)

	wordSource, err := words.NewFileSource(cfg.wordsPath)
	if err != nil {
		return fmt.Errorf("loading word source: %w", err)
	}

	st := store.NewMemoryStore(wordSource, rand.New(rand.NewSource(time.Now().UnixNano())))
	hub := ws.NewHub(st, 256)

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go hub.Run(hubCtx)

	handler := ws.NewHandler(hub, st, cfg.heartbeatInterval, cfg.clientTimeout, cfg.allowedOrigin, cfg.publicBaseURL)

	r := gin.Default()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(r)

	stopMetrics := startMetricsLoop(hubCtx, hub, st)
	defer stopMetrics()

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	srv := &http.Server{Addr: addr, Handler: r}

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
	}()

	select {
	case err := <-serveErrs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// startMetricsLoop periodically refreshes the room/session gauges
// and the hub queue-depth gauge from live state; flips and completed
// games are incremented inline by the hub itself.
func startMetricsLoop(ctx context.Context, hub *ws.Hub, st store.Store) func() {
	ticker := time.NewTicker(5 * time.Second)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rooms := st.ListRooms()
				sessions := 0
				for _, room := range rooms {
					sessions += len(room.Sessions)
				}
				middleware.RoomCount.Set(float64(len(rooms)))
				middleware.ActiveSessionCount.Set(float64(sessions))
				middleware.RequestQueueDepth.Set(float64(hub.QueueDepth()))
			}
		}
	}()

	return func() {
		ticker.Stop()
		<-done
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := &cliConfig{}
	cmd := newCmd(cfg)
	cmd.SetArgs(os.Args[1:])

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}
