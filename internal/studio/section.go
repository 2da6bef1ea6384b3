package studio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"AutoViral-Studio/internal/agent/catalog"
	xerrors "AutoViral-Studio/internal/errors"
)

// ErrBusy 表示该 section 已有调用在进行。
var ErrBusy = xerrors.New(xerrors.CodeBusy, "section is busy")

// Snapshot 是 section 状态的时点副本。
type Snapshot struct {
	Name      string          `json:"name"`
	Busy      bool            `json:"busy"`
	Result    catalog.Payload `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Section 保存一个视图的状态。每个 section 同时至多一次调用，section 之间互不影响。
type Section struct {
	name string
	busy atomic.Bool

	mu        sync.RWMutex
	result    catalog.Payload
	errText   string
	updatedAt time.Time
}

// NewSection 创建空闲的 section。
func NewSection(name string) *Section {
	return &Section{name: name}
}

// Name 返回 section 名称。
func (s *Section) Name() string { return s.name }

// Busy 表示是否有调用在进行。
func (s *Section) Busy() bool { return s.busy.Load() }

// Snapshot 复制当前状态。
func (s *Section) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Name:      s.name,
		Busy:      s.busy.Load(),
		Result:    s.result,
		Error:     s.errText,
		UpdatedAt: s.updatedAt,
	}
}

// Reset 清除上次的结果与错误，进行中的调用返回后仍会写入结果。
func (s *Section) Reset() {
	s.mu.Lock()
	s.result = nil
	s.errText = ""
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}

// run 在没有进行中调用时执行 fn，开始时清除上次结果与错误。fn 不随调用方取消，
// 被放弃的请求仍会记录结果。
func (s *Section) run(ctx context.Context, fn func(context.Context) (catalog.Payload, error)) (catalog.Payload, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	s.Reset()
	payload, err := fn(context.WithoutCancel(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now().UTC()
	if err != nil {
		s.errText = displayMessage(err)
		return nil, err
	}
	s.result = payload
	return payload, nil
}

func displayMessage(err error) string {
	if coded, ok := xerrors.From(err); ok {
		return coded.Message()
	}
	return err.Error()
}
