package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
	"github.com/yndnr/deltamesh-go/internal/core/service"
	"github.com/yndnr/deltamesh-go/internal/infra/buildinfo"
	"github.com/yndnr/deltamesh-go/internal/infra/confloader"
	"github.com/yndnr/deltamesh-go/internal/infra/shutdown"
	"github.com/yndnr/deltamesh-go/internal/server/clusterserver"
	"github.com/yndnr/deltamesh-go/internal/server/config"
	"github.com/yndnr/deltamesh-go/internal/server/httpserver"
	"github.com/yndnr/deltamesh-go/internal/storage/memory"
	"github.com/yndnr/deltamesh-go/internal/telemetry/logger"
	"github.com/yndnr/deltamesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func run(ctx context.Context, configFile string, overrides map[string]any) error {
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return err
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting deltamesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)

	nodeID, err := config.ResolveNodeID(cfg, slogger)
	if err != nil {
		return err
	}

	sessions := service.NewSessionService(memory.New(), config.ToSessionConfig(cfg, slogger))

	// The transport reads members from discovery, which only starts after
	// the replication listener is up so peers never see an address that
	// refuses connections.
	var discovery atomic.Pointer[clusterserver.Discovery]
	members := clusterserver.MemberSourceFunc(func() []replication.Member {
		if d := discovery.Load(); d != nil {
			return d.Members()
		}
		return nil
	})

	transport, err := clusterserver.NewTransport(config.ToTransportConfig(cfg, nodeID, slogger), members)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}

	manager, err := replication.New(config.ToReplicationConfig(cfg, slogger), sessions, transport)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("init replication: %w", err)
	}
	transport.Register(manager.Name(), manager)

	registry := metric.NewRegistry()
	registry.SetBuildInfo(info.Version, info.Commit)
	if err := registry.Register(metric.NewReplicationCollector(manager, transport)); err != nil {
		_ = transport.Close()
		return fmt.Errorf("register metrics: %w", err)
	}

	rpcServer := clusterserver.NewServer(cfg.Cluster.RPCAddr, transport, slogger)
	if err := rpcServer.Listen(); err != nil {
		_ = transport.Close()
		return err
	}

	httpLn, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
		Manager:   manager,
		Metrics:   registry,
		Logger:    slogger,
		RateLimit: httpserver.DefaultRouterConfig().RateLimit,
	}))

	sd := shutdown.NewHandler(shutdownTimeout, slogger)

	// Hooks run in reverse: HTTP, watcher, manager, replication listener,
	// discovery, transport. The manager stops while peers are still
	// reachable so shutdown expiry can be announced.
	sd.OnShutdown("transport", func(ctx context.Context) error {
		return transport.Close()
	})
	sd.OnShutdown("discovery", func(ctx context.Context) error {
		d := discovery.Load()
		if d == nil {
			return nil
		}
		return errors.Join(d.Leave(), d.Shutdown())
	})
	sd.OnShutdown("replication-listener", rpcServer.Shutdown)

	go func() {
		if err := rpcServer.Serve(); err != nil {
			log.Error("cluster server error", "error", err)
			sd.Trigger("cluster server failed")
		}
	}()
	go func() {
		log.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := httpServer.Serve(httpLn); err != nil {
			log.Error("HTTP server error", "error", err)
			sd.Trigger("http server failed")
		}
	}()

	d, err := clusterserver.NewDiscovery(config.ToDiscoveryConfig(cfg, nodeID, slogger))
	if err != nil {
		_ = httpServer.Shutdown(context.Background())
		_ = sd.Shutdown("discovery failed")
		return fmt.Errorf("init discovery: %w", err)
	}
	d.OnJoin(func(m replication.Member) {
		log.Info("cluster member joined", "member", m.String())
	})
	d.OnUpdate(func(m replication.Member) {
		log.Debug("cluster member updated", "member", m.String())
	})
	d.OnLeave(func(nodeID string) {
		log.Info("cluster member left", "node_id", nodeID)
		transport.ForgetMember(nodeID)
	})
	discovery.Store(d)

	if err := manager.Start(ctx); err != nil {
		// A failed bulk load is reported but the node keeps serving.
		log.Error("state transfer failed", "error", err)
	}
	sd.OnShutdown("replication-manager", manager.Stop)

	if configFile != "" {
		watcher, err := watchConfig(configFile, overrides, manager, slogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sd.OnShutdown("config-watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}
	sd.OnShutdown("http", httpServer.Shutdown)

	log.Info("node started",
		"node_id", nodeID,
		"context", manager.Name(),
		"state", manager.State().String(),
		"members", len(manager.Members()))

	if err := sd.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers defaults, file, environment and flags, then verifies.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// watchConfig reloads the settings that can change at runtime: the log
// level and whether replication statistics are collected. Everything
// else needs a restart.
func watchConfig(path string, overrides map[string]any, manager *replication.DeltaManager, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(path, overrides)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		manager.SetStatisticsEnabled(cfg.Replication.EnableStatistics)
		log.Info("config reloaded",
			"log_level", cfg.Log.Level,
			"enable_statistics", cfg.Replication.EnableStatistics)
	})
	w.StartAsync()
	return w, nil
}
