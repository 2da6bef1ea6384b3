package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"AutoViral-Studio/internal/agent"
	xerrors "AutoViral-Studio/internal/errors"
	"AutoViral-Studio/internal/observability/metrics"
	"AutoViral-Studio/pkg/logger"
)

// Caller 定义了处理器所需的 agent 调用能力，*agent.Client 满足该接口。
type Caller interface {
	Call(ctx context.Context, message, agentID string) agent.Result
}

// Processor 从队列消费任务 ID，每个任务只执行一次 agent 调用。
type Processor struct {
	caller      Caller
	store       Store
	consumer    Consumer
	workerCount int
	callTimeout time.Duration
	logger      *slog.Logger
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithCallTimeout 为每次 agent 调用设置超时，零值表示不限制。
func WithCallTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.callTimeout = timeout
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(caller Caller, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		caller:      caller,
		store:       store,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("processor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 取消。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.Handle)
}

// Handle 处理单个任务。只有在 agent 调用之前发生的存储错误才会返回，
// 使队列可以重新投递；调用一旦发出，任务就不会再次执行。
func (p *Processor) Handle(ctx context.Context, jobID string) error {
	if p.store == nil || p.caller == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if stdErrors.Is(err, ErrJobNotFound) || stdErrors.Is(err, ErrJobCompleted) || stdErrors.Is(err, ErrJobConflict) {
			p.logger.Debug("跳过任务", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("job_id", jobID))
		return err
	}

	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}
	result := p.caller.Call(callCtx, job.Message, job.AgentID)

	// 结果写回不受消费者取消的影响。
	storeCtx := context.WithoutCancel(ctx)
	if err := p.store.Complete(storeCtx, job.ID, result); err != nil {
		p.logger.Error("保存任务结果失败", slog.Any("error", err), slog.String("job_id", job.ID))
		if markErr := p.store.MarkFailed(storeCtx, job.ID, xerrors.CodeOf(err), err.Error()); markErr != nil {
			p.logger.Error("回写失败状态出错", slog.Any("error", markErr), slog.String("job_id", job.ID))
		}
		metrics.ObserveJobFinished(string(StatusFailed))
		return nil
	}

	if result.Success {
		metrics.ObserveJobFinished(string(StatusSucceeded))
		logger.Audit().Info("生成任务成功",
			slog.String("job_id", job.ID),
			slog.String("agent_id", job.AgentID),
			slog.Int("response_bytes", len(result.Response)),
		)
		return nil
	}
	metrics.ObserveJobFinished(string(StatusFailed))
	logger.Audit().Warn("生成任务失败",
		slog.String("job_id", job.ID),
		slog.String("agent_id", job.AgentID),
		slog.String("error", result.Error),
	)
	return nil
}
