package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/opencivic/sdcrs"
	httpAdapter "github.com/opencivic/sdcrs/internal/adapters/http"
	"github.com/opencivic/sdcrs/internal/adapters/memory"
	redisAdapter "github.com/opencivic/sdcrs/internal/adapters/redis"
	"github.com/opencivic/sdcrs/internal/config"
	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/internal/metrics"
	"github.com/opencivic/sdcrs/internal/notify"
	"github.com/opencivic/sdcrs/internal/payout"
	"github.com/opencivic/sdcrs/internal/tracking"
	"github.com/opencivic/sdcrs/internal/validation"
	"github.com/opencivic/sdcrs/pkg/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the case workflow HTTP server",
	Long: `Starts the sdcrs service: the workflow engine with SLA timers, the
side-effect dispatcher and the JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		workflowPath, _ := cmd.Flags().GetString("workflow")
		addrOverride, _ := cmd.Flags().GetString("addr")

		if err := runServe(configPath, workflowPath, addrOverride); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides config)")
}

func runServe(configPath, workflowPath, addrOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrOverride != "" {
		cfg.HTTPAddr = addrOverride
	}
	if workflowPath == "" {
		workflowPath = cfg.WorkflowFile
	}

	wfCfg, err := config.LoadWorkflow(workflowPath)
	if err != nil {
		return err
	}

	logger := logging.New(parseLevel(cfg.LogLevel))
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	opts := []sdcrs.Option{
		sdcrs.WithLogger(logger),
		sdcrs.WithMetrics(m),
		sdcrs.WithWorkflowConfig(wfCfg),
		sdcrs.WithTenant(cfg.TenantID),
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		opts = append(opts,
			sdcrs.WithStore(redisAdapter.NewFromClient(redisClient)),
			sdcrs.WithLocker(redisAdapter.NewLocker(redisClient, "sdcrs:")),
			sdcrs.WithSequencer(tracking.NewRedisSequencer(redisClient, "sdcrs:")),
		)
		logger.Info("using redis backend", "addr", cfg.Redis.Addr)
	} else {
		opts = append(opts, sdcrs.WithStore(memory.NewStore()))
		logger.Info("using in-memory backend")
	}

	svc, err := sdcrs.New(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	registerCollaborators(svc, logger)

	handler := httpAdapter.NewHandler(svc, logger, registry, svc)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("starting sdcrs server", "addr", srv.Addr, "tenant", cfg.TenantID)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err

	case sig := <-shutdown:
		logger.Info("starting shutdown", "signal", sig.String())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		logger.Info("sdcrs server stopped")
	}
	return nil
}

// registerCollaborators binds the side-effect handlers: SMS notifications,
// the automated validator, the payout bridge and the operator alerts.
func registerCollaborators(svc *sdcrs.Service, logger *slog.Logger) {
	d := svc.Dispatcher()

	notifier := notify.NewNotifier(notify.NewLogSender(logger))
	d.RegisterFunc(domain.ActionNotify, notifier.Handler)

	validator := validation.New(validation.GetterFunc(svc.GetCase), svc,
		validation.WithLogger(logger))
	d.RegisterFunc(domain.ActionTriggerValidation, validator.Handle)

	ledger := payout.NewMemoryLedger(0)
	gateway := payout.NewLoopbackGateway(2*time.Second, logger)
	bridge := payout.NewBridge(ledger, gateway, svc, payout.WithLogger(logger))
	gateway.Bind(bridge)
	d.RegisterFunc(domain.ActionTriggerPayout, bridge.HandleTrigger)
	d.RegisterFunc(domain.ActionInitiatePayout, bridge.HandleInitiate)

	d.RegisterFunc(domain.ActionRetryAlert, func(_ context.Context, req domain.ActionRequest) error {
		logger.Warn("payout retry budget exhausted, awaiting manual settlement", "case_id", req.CaseID)
		return nil
	})
	d.RegisterFunc(domain.ActionEscalationAlert, func(_ context.Context, req domain.ActionRequest) error {
		logger.Warn("sla escalation", "case_id", req.CaseID)
		return nil
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
