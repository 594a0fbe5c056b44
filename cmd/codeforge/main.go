// Command codeforge runs the API-token gateway in front of the code runners.
//
// Usage:
//
//	codeforge serve
//	codeforge issue --tier hobby --owner dev@example.com
//	codeforge version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/config"
	"github.com/codeforge/gateway/internal/credential"
	dbRedis "github.com/codeforge/gateway/internal/db/redis"
	logpkg "github.com/codeforge/gateway/internal/logger"
	"github.com/codeforge/gateway/internal/metrics"
	tokenrepo "github.com/codeforge/gateway/internal/repository/token"
	chiTransport "github.com/codeforge/gateway/internal/transport/chi"
	lambdaRunner "github.com/codeforge/gateway/internal/transport/lambda"
	executionuc "github.com/codeforge/gateway/internal/usecase/execution"
	gatewayuc "github.com/codeforge/gateway/internal/usecase/gateway"
	healthuc "github.com/codeforge/gateway/internal/usecase/health"
	quotauc "github.com/codeforge/gateway/internal/usecase/quota"
	tokenuc "github.com/codeforge/gateway/internal/usecase/token"
	"github.com/codeforge/gateway/internal/version"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the HTTP gateway."`
	Issue   IssueCmd   `cmd:"" help:"Issue a token and print it."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Env string `help:"Environment name, selects config/<env>.yaml." env:"ENV" default:"local"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(version.String())
	return nil
}

// IssueCmd mints a token without going through HTTP.
type IssueCmd struct {
	Tier  string `help:"Token tier (free, hobby, business)." default:"free"`
	Owner string `help:"Owner identity, usually an email." required:""`
}

func (c *IssueCmd) Run(cli *CLI) error {
	app, err := bootstrap(cli.Env)
	if err != nil {
		return err
	}
	defer app.close()

	ctx := logpkg.ContextWithLogger(context.Background(), app.logger)
	issued, err := app.tokens.Issue(ctx, c.Tier, c.Owner)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"credential": issued.Credential,
		"tier":       issued.Tier.String(),
		"owner":      issued.Owner,
		"dailyLimit": issued.DailyLimit,
	})
}

// ServeCmd starts the HTTP gateway.
type ServeCmd struct {
	Port int `help:"Override http.port from the config file."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	app, err := bootstrap(cli.Env)
	if err != nil {
		return err
	}
	defer app.close()

	cfg, logger := app.cfg, app.logger
	if c.Port > 0 {
		cfg.HTTP.Port = c.Port
	}

	ctx := context.Background()
	runner, err := lambdaRunner.NewFromConfig(ctx, lambdaRunner.Config{
		Region:          cfg.Runner.Region,
		Endpoint:        cfg.Runner.Endpoint,
		AccessKeyID:     cfg.Runner.AccessKeyID,
		SecretAccessKey: cfg.Runner.SecretAccessKey,
		Functions:       cfg.Runner.LanguageFunctions(),
	})
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	quotaSvc := quotauc.New(app.repo)
	execSvc := executionuc.New(runner)
	gatewaySvc := gatewayuc.New(app.signer, quotaSvc, execSvc, app.tokens).
		WithRunnerTimeout(time.Duration(cfg.Runner.TimeoutSec) * time.Second)
	healthSvc := healthuc.New(app.store, runner)

	server := chiTransport.NewServer(app.tokens, gatewaySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Mount(r, cfg.Auth.APIKeys)

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("No admin API keys configured, GET /tokens is closed")
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// app holds the components shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *dbRedis.Store
	repo   *tokenrepo.Repo
	signer *credential.Signer
	tokens *tokenuc.Service
}

func bootstrap(env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting codeforge gateway",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// valkey speaks the same protocol, so one driver serves both
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:     cfg.Database.Addrs,
		Password:  cfg.Database.Password,
		OpTimeout: time.Duration(cfg.Database.OpTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create store: %w", err)
	}

	if err := store.WaitForReady(context.Background(), time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	signer, err := credential.NewSigner(cfg.Auth.CredentialSecret)
	if err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("create signer: %w", err)
	}

	metrics.RegisterGatewayMetrics()

	repo := tokenrepo.New(store).WithKeyPrefix(cfg.Storage.KeyPrefix)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		repo:   repo,
		signer: signer,
		tokens: tokenuc.New(repo, signer),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("codeforge"),
		kong.Description("API-token quota gateway for remote code runners."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
