package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/apitest"
	"gwi.com/kb-console/internal/config"
	"gwi.com/kb-console/internal/logger"
)

func demoCmd() *cobra.Command {
	var (
		serveOnly bool
		addr      string
		latency   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the terminal UI against a built-in demo server",
		Long: `Start an in-memory console API with sample knowledge bases and open the
terminal UI against it. With --serve only the server runs, so other commands
can point CONSOLE_API_URL at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("could not listen on %s: %w", addr, err)
			}
			baseURL := "http://" + ln.Addr().String()

			cfg := config.AppConfig
			cfg.Backend = config.BackendAPI
			cfg.APIBaseURL = baseURL
			cfg.APIToken = ""
			cfg.Username = apitest.DemoUsername
			cfg.Password = apitest.DemoPassword

			var (
				a   *app
				log logger.Logger
			)
			if serveOnly {
				zl := logger.NewZapLogger(cfg.LogFile, cfg.LogLevel)
				defer zl.Sync()
				log = zl
			} else {
				if a, err = newApp(ctx, cfg, true); err != nil {
					ln.Close()
					return err
				}
				defer a.Close()
				log = a.log
			}

			srv := apitest.NewDemoServer(
				apitest.WithSecret([]byte(cfg.DemoJWTSecret)),
				apitest.WithLatency(latency),
				apitest.WithLogger(log),
			)
			httpSrv := &http.Server{
				Handler:      srv.Handler(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("demo", "demo server stopped", map[string]interface{}{"error": err})
				}
			}()
			defer shutdown(httpSrv, log)
			log.Info("demo", "demo server listening", map[string]interface{}{"url": baseURL})

			if serveOnly {
				fmt.Fprintf(cmd.OutOrStdout(), "Demo API on %s (user %q, password %q). Press Ctrl+C to quit.\n",
					baseURL, apitest.DemoUsername, apitest.DemoPassword)
				<-ctx.Done()
				return nil
			}
			return runProgram(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&serveOnly, "serve", false, "Only run the demo API server")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "Listen address of the demo server")
	cmd.Flags().DurationVar(&latency, "latency", 800*time.Millisecond, "Delay before each chat reply")
	return cmd
}

func shutdown(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("demo", "demo server forced to shutdown", map[string]interface{}{"error": err})
	}
}
