package main

import (
	"context"
	"os"
	"time"

	"github.com/sysdig/attachment-virus-scanner/pkg/auth"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/logging"
	"github.com/sysdig/attachment-virus-scanner/pkg/pipeline"
	"github.com/sysdig/attachment-virus-scanner/pkg/queue"
	"github.com/sysdig/attachment-virus-scanner/pkg/server"
	"github.com/sysdig/attachment-virus-scanner/pkg/shutdown"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.NewLogger(logging.LogLevelInfo).WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))
	logging.LogStartup(logger, version, cfg.Server.Port)

	p := pipeline.New(logger)
	if err := p.Configure(cfg); err != nil {
		logger.WithError(err).Fatal("Failed to configure scan pipeline")
	}
	logging.LogConfigurationLoaded(logger, cfg.Scanner.Type, cfg.Storage.Type, p.Addons())

	// Builds both backends and probes the scanner before the worker starts
	service, err := server.NewScanService(p, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build scan backends")
	}
	if !service.Available() {
		logger.WithField("scanner_type", cfg.Scanner.Type).Warn("Scanner not available at startup")
	}

	jobTimeout, _ := cfg.ParseDuration(cfg.Queue.JobTimeout)
	shutdownTimeout, _ := cfg.ParseDuration(cfg.Server.ShutdownTimeout)

	scanQueue := queue.NewScanQueue(cfg.Queue.BufferSize, logger)
	worker := queue.NewWorker(scanQueue, service.Handle, jobTimeout, logger)

	authenticator, err := auth.NewAuthenticator(cfg.Server.Auth, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid authentication settings")
	}

	apiServer := server.NewServer(cfg, worker, service.Available, authenticator, logger)

	manager := shutdown.NewManager(shutdownTimeout, logger)
	manager.RegisterHandler("http-server", apiServer.Shutdown)
	manager.RegisterHandler("scan-worker", func(ctx context.Context) error {
		remaining := shutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			remaining = time.Until(deadline)
		}
		return worker.Stop(remaining)
	})
	manager.RegisterHandler("pipeline", func(context.Context) error {
		p.Reset()
		return nil
	})

	worker.Start()

	go func() {
		if err := apiServer.Start(); err != nil {
			logging.LogError(logger, err, "http_server", map[string]interface{}{"port": cfg.Server.Port})
			manager.Trigger()
		}
	}()

	if err := manager.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}
