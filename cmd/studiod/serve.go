package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"AutoViral-Studio/internal/agent"
	"AutoViral-Studio/internal/agent/catalog"
	"AutoViral-Studio/internal/api"
	"AutoViral-Studio/internal/config"
	"AutoViral-Studio/internal/studio"
	"AutoViral-Studio/internal/task"
	"AutoViral-Studio/pkg/logger"
)

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("studiod")

	client, registry, err := newAgentClient(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	store, err := newJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	queue, err := newJobQueue(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}

	jobs := task.NewService(store, queue)
	defer func() {
		if err := jobs.Close(); err != nil {
			log.Warn("关闭任务服务失败", slog.Any("error", err))
		}
	}()

	processor := task.NewProcessor(client, store, queue, task.WithWorkerCount(cfg.Queue.Workers))
	server := api.NewServer(cfg.Server.Address, api.Dependencies{
		Agent:    client,
		Registry: registry,
		Studio:   studio.New(client, registry),
		Jobs:     jobs,
	},
		api.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout()),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout()),
	)

	log.Info("studiod 启动",
		slog.String("endpoint", client.Endpoint()),
		slog.String("job_store", cfg.Storage.JobStore.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.Int("agents", len(registry.List())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return processor.Start(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("studiod 已停止")
		return nil
	}
	return err
}

func call(ctx context.Context, configPath, agentRef, message string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// stdout 只输出结果信封，日志改写到 stderr。
	cfg.Logging.OutputPaths = stdoutToStderr(cfg.Logging.OutputPaths)
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, registry, err := newAgentClient(cfg)
	if err != nil {
		return err
	}
	agentID := agentRef
	if entry, ok := registry.Resolve(agentRef); ok {
		agentID = entry.ID
	}

	result := client.Call(ctx, message, agentID)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("agent 调用失败: %s", result.Error)
	}
	return nil
}

func stdoutToStderr(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.EqualFold(strings.TrimSpace(p), "stdout") {
			p = "stderr"
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, "stderr")
	}
	return out
}

func newAgentClient(cfg *config.Config) (*agent.Client, *catalog.Registry, error) {
	if cfg.Agent.Endpoint == "" {
		return nil, nil, fmt.Errorf("未配置 agent.endpoint (可通过 STUDIO_AGENT_ENDPOINT 设置)")
	}
	registry, err := catalog.LoadRegistry(cfg.Agent.RegistryFile)
	if err != nil {
		return nil, nil, err
	}
	client, err := agent.New(agent.Config{
		Endpoint: cfg.Agent.Endpoint,
		APIKey:   cfg.Agent.ResolveAPIKey(),
		UserID:   cfg.Agent.UserID,
		Label:    registry.Label,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, registry, nil
}

func newJobStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.JobStore.Driver {
	case "memory", "":
		return task.NewMemoryStore(), nil
	case "mysql":
		return task.NewMySQLStore(ctx, task.MySQLConfig{
			DSN:             cfg.Storage.JobStore.DSN,
			MaxOpenConns:    cfg.Storage.JobStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.JobStore.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.JobStore.ConnMaxLifetime(),
		})
	default:
		return nil, fmt.Errorf("不支持的任务存储驱动: %s", cfg.Storage.JobStore.Driver)
	}
}

func newJobQueue(ctx context.Context, cfg *config.Config) (task.Queue, error) {
	switch cfg.Queue.Driver {
	case "memory", "":
		return task.NewMemoryQueue(cfg.Queue.Capacity), nil
	case "redis":
		return task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:   cfg.Queue.Redis.Address,
			Password:  cfg.Queue.Redis.Password,
			DB:        cfg.Queue.Redis.DB,
			Queue:     cfg.Queue.Redis.Queue,
			BlockWait: cfg.Queue.Redis.BlockWait(),
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.Queue.RabbitMQ.URL,
			Queue:      cfg.Queue.RabbitMQ.Queue,
			Prefetch:   cfg.Queue.RabbitMQ.Prefetch,
			Durable:    cfg.Queue.RabbitMQ.Durable,
			AutoDelete: cfg.Queue.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("不支持的队列驱动: %s", cfg.Queue.Driver)
	}
}
