package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Gateway/internal/adapters/http"
	"github.com/dkeye/Gateway/internal/adapters/tcp"
	"github.com/dkeye/Gateway/internal/app"
	"github.com/dkeye/Gateway/internal/app/orch"
	"github.com/dkeye/Gateway/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Room relay over WebSocket with a TCP echo channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	bindFlags(v, root.Flags())

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	})
	return root
}

// bindFlags declares the command-line overrides and maps them onto config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Int("port", 10000, "HTTP/WebSocket listen port (env PORT)")
	flags.Int("tcp-port", 10001, "TCP echo listen port, 0 disables (env TCP_PORT)")
	flags.String("mode", "release", "release or debug")
	flags.String("log-level", "info", "zerolog level")
	for key, name := range map[string]string{
		"port":      "port",
		"tcp_port":  "tcp-port",
		"mode":      "mode",
		"log_level": "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

func run(parent context.Context, v *viper.Viper) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	policy, err := app.PolicyByName(cfg.SlowConsumer)
	if err != nil {
		return err
	}
	rooms := app.NewRoomManager()
	reg := app.NewRegistry()
	o := orch.New(reg, rooms, app.NewRelay(rooms, policy), app.NewRoomRateLimiter(cfg.JoinLimit, cfg.JoinInterval))

	addr := ":" + strconv.Itoa(cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           router.SetupRouter(ctx, cfg, o),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var echo *tcp.Server
	if cfg.TCPPort != 0 {
		echo = tcp.NewServer("echo", ":"+strconv.Itoa(cfg.TCPPort), cfg.Greeting, cfg.EchoLimit)
		if err := echo.Start(); err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("service", cfg.ServiceName).Msg("http/ws listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		reg.CloseAll()
		if echo != nil {
			echo.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServiceName).Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
