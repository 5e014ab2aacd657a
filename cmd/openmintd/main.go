package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"OpenMint-Vault/internal/config"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/journal"
	"OpenMint-Vault/internal/notify"
	"OpenMint-Vault/internal/observability/metrics"
	"OpenMint-Vault/internal/vault"
	"OpenMint-Vault/pkg/logger"
	"OpenMint-Vault/pkg/plugin"
)

// main 是 OpenMint 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("openmintd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("OPENMINT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "openmint.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	owner, err := identity.Parse(cfg.Governance.Owner)
	if err != nil {
		return fmt.Errorf("解析治理所有者失败: %w", err)
	}

	// 审计日志存储与链式记录器。
	store, err := buildJournalStore(cfg)
	if err != nil {
		return err
	}
	recorder, err := journal.NewRecorder(ctx, store)
	if err != nil {
		_ = store.Close()
		return err
	}
	checked, err := recorder.Verify(ctx)
	if err != nil {
		_ = recorder.Close()
		return fmt.Errorf("启动时审计链校验失败: %w", err)
	}

	sinks, err := buildSinks(cfg)
	if err != nil {
		_ = recorder.Close()
		return err
	}
	sinks = append(sinks, recorder)

	var bridge *notify.PluginBridge
	if cfg.Plugins.File != "" {
		bridge = notify.NewPluginBridge(0)
		sinks = append(sinks, bridge)
	}

	fanout := notify.NewFanout(sinks...)
	defer func() {
		if err := fanout.Close(); err != nil {
			logger.L().Error("关闭通知渠道失败", "error", err)
		}
	}()
	emitter := notify.NewEmitter(fanout)

	v, err := vault.New(owner, emitter)
	if err != nil {
		return err
	}

	// 插件在创世之前启动，保证观察者能看到完整的事件流。
	if cfg.Plugins.File != "" {
		managerCfg, err := plugin.LoadManagerConfig(cfg.Plugins.File)
		if err != nil {
			return err
		}
		manager, err := plugin.NewManager(managerCfg,
			plugin.WithResource(plugin.ResourceEventFeed, bridge.Feed()),
			plugin.WithResource(plugin.ResourceJournalStats, journalStatsResource(recorder)),
		)
		if err != nil {
			return err
		}
		if err := manager.StartAll(ctx); err != nil {
			return err
		}
		defer func() {
			if err := manager.StopAll(context.Background()); err != nil {
				logger.L().Error("停止插件失败", "error", err)
			}
		}()
		for _, info := range manager.Infos() {
			logger.L().Info("插件已加载", "id", info.ID, "category", string(info.Category), "version", info.Version)
		}
	}

	defs, err := vault.LoadDefinitions(cfg.Governance.AssetsFile)
	if err != nil {
		return err
	}
	if err := v.ApplyGenesis(ctx, defs); err != nil {
		return err
	}

	logger.L().Info("OpenMint 守护进程已启动",
		"owner", owner.Hex(),
		"ledgers", v.LedgerNames(),
		"registries", v.RegistryNames(),
		"journal_driver", cfg.Journal.Driver,
		"journal_verified", checked,
	)

	ops, err := vault.LoadOperations(cfg.Governance.OpsFile)
	if err != nil {
		return err
	}
	if len(ops) > 0 {
		results := v.Run(ctx, ops)
		failed := 0
		for _, result := range results {
			if result.Code != metrics.CodeOK {
				failed++
			}
		}
		logger.L().Info("管理指令批次执行完成", "total", len(results), "failed", failed)
	}

	if cfg.Metrics.Enabled {
		logger.L().Info("指标服务监听中", "address", cfg.Metrics.Address)
		if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

// loggerConfig 将守护进程配置映射为 pkg/logger 的初始化参数。
func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}
}

// buildJournalStore 按配置选择审计日志的持久化后端。
func buildJournalStore(cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Driver {
	case "", "memory":
		return journal.NewMemoryStore(), nil
	case "mysql":
		return journal.NewMySQLStore(cfg.Journal.DSN)
	default:
		return nil, fmt.Errorf("未知的日志存储驱动: %s", cfg.Journal.Driver)
	}
}

// buildSinks 根据配置组装外部通知渠道。
func buildSinks(cfg *config.Config) ([]notify.Sink, error) {
	sinks := make([]notify.Sink, 0, len(cfg.Notify.Sinks)+2)
	for _, name := range cfg.Notify.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, notify.NewLogSink())
		case "memory":
			sinks = append(sinks, notify.NewMemorySink())
		case "redis":
			sink, err := notify.NewRedisSink(notify.RedisSinkConfig{
				Address:  cfg.Notify.Redis.Address,
				Password: cfg.Notify.Redis.Password,
				DB:       cfg.Notify.Redis.DB,
				List:     cfg.Notify.Redis.List,
			})
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case "rabbitmq":
			sink, err := notify.NewRabbitMQSink(notify.RabbitMQSinkConfig{
				URL:        cfg.Notify.RabbitMQ.URL,
				Queue:      cfg.Notify.RabbitMQ.Queue,
				Durable:    cfg.Notify.RabbitMQ.Durable,
				AutoDelete: cfg.Notify.RabbitMQ.AutoDelete,
			})
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("未知的通知渠道: %s", name)
		}
	}
	return sinks, nil
}

// journalStatsResource 将审计统计包装成插件可以消费的函数资源。
func journalStatsResource(recorder *journal.Recorder) func(context.Context) (map[string]int64, error) {
	return func(ctx context.Context) (map[string]int64, error) {
		stats, err := recorder.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int64{
			"total":              int64(stats.Total),
			"authority":          int64(stats.Authority),
			"gate":               int64(stats.Gate),
			"ledger":             int64(stats.Ledger),
			"registry":           int64(stats.Registry),
			"last_sequence":      int64(stats.LastSequence),
			"oldest_occurred_at": stats.OldestOccurredAt,
			"newest_occurred_at": stats.NewestOccurredAt,
		}, nil
	}
}
