// Package catalog 定义四个 studio agent，维护它们与外部 id 的映射，
// 并把各 agent 的载荷解码为类型化的值。
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Kind 决定调用的 agent 以及载荷结构。
type Kind string

const (
	KindScriptPlanner   Kind = "script-planner"
	KindTrendTopic      Kind = "trend-topic"
	KindCaptionHashtags Kind = "caption-hashtags"
	KindHookOptimizer   Kind = "hook-optimizer"
)

// Kinds 按展示顺序列出所有种类。
var Kinds = []Kind{KindScriptPlanner, KindTrendTopic, KindCaptionHashtags, KindHookOptimizer}

// Valid 判断 k 是否为已知种类。
func (k Kind) Valid() bool {
	switch k {
	case KindScriptPlanner, KindTrendTopic, KindCaptionHashtags, KindHookOptimizer:
		return true
	default:
		return false
	}
}

// Agent 描述一个外部 agent。
type Agent struct {
	Kind    Kind   `yaml:"kind" json:"kind"`
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Purpose string `yaml:"purpose" json:"purpose"`
}

// Defaults 是生产环境的 agent。
var Defaults = []Agent{
	{Kind: KindScriptPlanner, ID: "69a3270589a7585c80443946", Name: "Script & Scene Planner", Purpose: "Generates structured video scripts with scene breakdowns"},
	{Kind: KindTrendTopic, ID: "69a327053dad68d04a05e74f", Name: "Trend & Topic", Purpose: "Researches trending topics and viral patterns"},
	{Kind: KindCaptionHashtags, ID: "69a32706931679f19b7d6d2b", Name: "Caption & Hashtags", Purpose: "Creates platform-optimized captions and hashtag sets"},
	{Kind: KindHookOptimizer, ID: "69a32706e7d556f541c6d6e5", Name: "Hook Optimizer", Purpose: "Analyzes performance and improves hooks"},
}

// Registry 在种类与 agent 之间双向解析。
type Registry struct {
	mu     sync.RWMutex
	byKind map[Kind]Agent
	byID   map[string]Agent
}

// NewRegistry 由 agents 构建注册表，同种类的后续条目覆盖先前条目。
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{byKind: make(map[Kind]Agent), byID: make(map[string]Agent)}
	for _, a := range agents {
		if err := r.put(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry 返回包含 Defaults 的注册表。
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults...)
	if err != nil {
		panic(err)
	}
	return r
}

// yamlFile 是注册文件的磁盘格式。
type yamlFile struct {
	Agents []Agent `yaml:"agents"`
}

// LoadRegistry 读取 YAML 文件并覆盖到 Defaults 上。条目可以只覆盖 id，
// 名称与用途沿用默认值。
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 agent 注册文件失败: %w", err)
	}
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析 agent 注册文件失败: %w", err)
	}

	r := DefaultRegistry()
	for _, entry := range file.Agents {
		if base, ok := r.ByKind(entry.Kind); ok {
			if entry.Name == "" {
				entry.Name = base.Name
			}
			if entry.Purpose == "" {
				entry.Purpose = base.Purpose
			}
		}
		if err := r.put(entry); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return r, nil
}

func (r *Registry) put(a Agent) error {
	a.ID = strings.TrimSpace(a.ID)
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown agent kind %q", a.Kind)
	}
	if a.ID == "" {
		return fmt.Errorf("agent %s has no id", a.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.byID[a.ID]; ok && other.Kind != a.Kind {
		return fmt.Errorf("agent id %s already assigned to %s", a.ID, other.Kind)
	}
	if previous, ok := r.byKind[a.Kind]; ok {
		delete(r.byID, previous.ID)
	}
	r.byKind[a.Kind] = a
	r.byID[a.ID] = a
	return nil
}

// ByKind 按种类查找 agent。
func (r *Registry) ByKind(k Kind) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKind[k]
	return a, ok
}

// ByID 按外部 id 查找 agent。
func (r *Registry) ByID(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[strings.TrimSpace(id)]
	return a, ok
}

// Label 返回 id 对应 agent 的种类名，未注册的 id 返回空串。用作指标标签。
func (r *Registry) Label(id string) string {
	if a, ok := r.ByID(id); ok {
		return string(a.Kind)
	}
	return ""
}

// Resolve 接受种类名或外部 id。
func (r *Registry) Resolve(ref string) (Agent, bool) {
	if a, ok := r.ByKind(Kind(strings.TrimSpace(ref))); ok {
		return a, true
	}
	return r.ByID(ref)
}

// List 按 Kinds 顺序返回 agent。
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.byKind))
	for _, a := range r.byKind {
		out = append(out, a)
	}
	order := make(map[Kind]int, len(Kinds))
	for i, k := range Kinds {
		order[k] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Kind] < order[out[j].Kind] })
	return out
}
