package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Prathameshworks247/AGILITY/internal/config"
	"github.com/Prathameshworks247/AGILITY/internal/db"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
	"github.com/Prathameshworks247/AGILITY/internal/gateway"
	"github.com/Prathameshworks247/AGILITY/internal/migrate"
	"github.com/Prathameshworks247/AGILITY/internal/server"
	"github.com/Prathameshworks247/AGILITY/internal/session"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var historyCap int
	var allowDevLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review store API",
		RunE: func(cmd *cobra.Command, args []string) error {
			jwtSecret, err := requireEnv("jwt-secret")
			if err != nil {
				return err
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			hooks, err := config.LoadWebhooks(workspace)
			if err != nil {
				return err
			}
			logger := newLogger()
			e := engine.New(conn)
			e.HistoryCap = historyCap
			authCfg := server.AuthConfig{
				JWTSecret:     jwtSecret,
				ServiceSecret: strings.TrimSpace(viper.GetString("service-secret")),
				AllowDevLogin: allowDevLogin,
				Logger:        logger,
			}
			if authCfg.ServiceSecret == "" {
				logger.Warn("AGILITY_SERVICE_SECRET is not set; service mode is disabled")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			dispatcher := &server.WebhookDispatcher{Engine: e, Webhooks: hooks, Logger: logger}
			go dispatcher.Run(ctx)

			ui.Info("Serving review store on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)", addr, basePath)
			return listenAndServe(ctx, &http.Server{Addr: addr, Handler: handler})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().IntVar(&historyCap, "history-cap", engine.DefaultHistoryCap, "maximum reviews returned by one history read")
	cmd.Flags().BoolVar(&allowDevLogin, "allow-dev-login", false, "expose POST /auth/dev/login for local testing")
	return cmd
}

func gatewayCmd() *cobra.Command {
	var addr, storeURL, storeBasePath, analyzerName, model string
	var analysisTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start the analysis gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceSecret, err := requireEnv("service-secret")
			if err != nil {
				return err
			}
			var analyzer gateway.Analyzer
			switch analyzerName {
			case "anthropic":
				apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
				if apiKey == "" {
					return errors.New("ANTHROPIC_API_KEY is required for the anthropic analyzer")
				}
				analyzer = gateway.NewResilientAnalyzer(gateway.NewAnthropicAnalyzer(apiKey, model), analysisTimeout)
			case "heuristic":
				analyzer = gateway.HeuristicAnalyzer{}
			default:
				return fmt.Errorf("unknown analyzer %q (expected anthropic or heuristic)", analyzerName)
			}
			logger := newLogger()
			reviewsURL := strings.TrimRight(storeURL, "/") + "/" + strings.Trim(storeBasePath, "/") + "/reviews"
			handler, err := gateway.New(gateway.Config{
				Analyzer:        analyzer,
				ReviewsURL:      reviewsURL,
				ServiceSecret:   serviceSecret,
				JWTSecret:       strings.TrimSpace(viper.GetString("jwt-secret")),
				AnalysisTimeout: analysisTimeout,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("gateway starting", "addr", addr, "analyzer", analyzer.Name(), "reviews", reviewsURL)
			ui.Info("Analysis gateway on http://%s/v0/snapshots", addr)
			return listenAndServe(ctx, &http.Server{Addr: addr, Handler: handler})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	cmd.Flags().StringVar(&storeURL, "store-url", "http://127.0.0.1:8080", "review store base URL")
	cmd.Flags().StringVar(&storeBasePath, "store-base-path", "/v0", "review store API base path")
	cmd.Flags().StringVar(&analyzerName, "analyzer", "anthropic", "analyzer: anthropic or heuristic")
	cmd.Flags().StringVar(&model, "model", gateway.DefaultModel, "model used by the anthropic analyzer")
	cmd.Flags().DurationVar(&analysisTimeout, "analysis-timeout", gateway.DefaultAnalysisTimeout, "upper bound on one analysis including its retry")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := requireEnv("jwt-secret")
			if err != nil {
				return err
			}
			tok, err := session.Sign(secret, viper.GetString("user"), ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func listenAndServe(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
