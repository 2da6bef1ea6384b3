package task

import (
	"context"

	"AutoViral-Studio/internal/agent"
	xerrors "AutoViral-Studio/internal/errors"
)

// Store 抽象了生成任务状态的持久化接口。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Claim 将待执行任务标记为运行中。已结束的任务返回 ErrJobCompleted，
	// 运行中的任务返回 ErrJobConflict。
	Claim(ctx context.Context, id string) (*Job, error)
	// Complete 保存调用信封，并根据信封决定任务成功或失败。
	Complete(ctx context.Context, id string, result agent.Result) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string) error
	List(ctx context.Context, opts ListOptions) ([]*Job, error)
	Stats(ctx context.Context, opts ListOptions) (JobStats, error)
	Close() error
}

// outcome 计算信封对应的终态。
func outcome(result agent.Result) (Status, string, string) {
	if result.Success {
		return StatusSucceeded, "", ""
	}
	return StatusFailed, string(CodeAgentFailed), result.Error
}
