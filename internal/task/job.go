package task

import (
	"encoding/json"
	"maps"

	"AutoViral-Studio/internal/agent"
	xerrors "AutoViral-Studio/internal/errors"
)

// Status 表示生成任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job 描述一次排队执行的 agent 调用。Result 保存调用返回的完整信封，
// 失败的调用同样会保留信封。
type Job struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    Status         `json:"status"`
	Attempts  int            `json:"attempts"`
	Result    *agent.Result  `json:"result,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// Request 是提交生成任务的参数。ID 可选，提供时提交是幂等的。
type Request struct {
	ID       string         `json:"id,omitempty"`
	AgentID  string         `json:"agent_id"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Done 判断任务是否已经结束。
func (j *Job) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Metadata = cloneMetadata(j.Metadata)
	out.Result = cloneResult(j.Result)
	return &out
}

func cloneResult(r *agent.Result) *agent.Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Response != nil {
		out.Response = append(json.RawMessage(nil), r.Response...)
	}
	return &out
}

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeAgentFailed   xerrors.Code = "JOB_AGENT_FAILED"
)

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict")
	// ErrJobCompleted 表示任务已经结束，不会再次执行。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed")
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:  "job not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:  "job conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:  "job already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:  "job validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:   "failed to publish job",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
	})
	xerrors.Register(CodeAgentFailed, xerrors.Attributes{
		Message:  "agent call failed",
		Severity: xerrors.SeverityWarning,
	})
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	return maps.Clone(metadata)
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}
