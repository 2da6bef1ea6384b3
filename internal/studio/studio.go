package studio

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"AutoViral-Studio/internal/agent"
	"AutoViral-Studio/internal/agent/catalog"
	xerrors "AutoViral-Studio/internal/errors"
	"AutoViral-Studio/pkg/logger"
)

// CodeGenerationFailed 表示 agent 调用结果无法展示，错误消息即展示给用户的文本。
const CodeGenerationFailed xerrors.Code = "GENERATION_FAILED"

func init() {
	xerrors.Register(CodeGenerationFailed, xerrors.Attributes{
		Message:  "generation failed",
		Severity: xerrors.SeverityWarning,
	})
}

// agent 未给出错误信息时展示的兜底文案。
const (
	FallbackScript   = "Failed to generate script."
	FallbackCaptions = "Failed to generate captions."
	FallbackTopics   = "Failed to fetch topics. Please try again."
	FallbackAnalysis = "Failed to analyze. Please try again."
	FallbackNetwork  = "Network error. Please try again."
)

// Section 名称。
const (
	SectionScript    = "script"
	SectionCaptions  = "captions"
	SectionNiches    = "niches"
	SectionAnalytics = "analytics"
)

// Invoker 执行一次 agent 调用，*agent.Client 满足该接口。
type Invoker interface {
	Call(ctx context.Context, message, agentID string) agent.Result
}

// Studio 将各视图绑定到 agent 调用方。
type Studio struct {
	invoker  Invoker
	registry *catalog.Registry
	log      *slog.Logger

	Script    *Section
	Captions  *Section
	Niches    *Section
	Analytics *Section
}

// New 创建 Studio，registry 为 nil 时使用默认 agent。
func New(invoker Invoker, registry *catalog.Registry) *Studio {
	if registry == nil {
		registry = catalog.DefaultRegistry()
	}
	return &Studio{
		invoker:   invoker,
		registry:  registry,
		log:       logger.Named("studio"),
		Script:    NewSection(SectionScript),
		Captions:  NewSection(SectionCaptions),
		Niches:    NewSection(SectionNiches),
		Analytics: NewSection(SectionAnalytics),
	}
}

// Registry 返回使用中的 agent 目录。
func (s *Studio) Registry() *catalog.Registry { return s.registry }

// Section 按名称查找 section。
func (s *Studio) Section(name string) (*Section, bool) {
	for _, sec := range s.Sections() {
		if sec.Name() == name {
			return sec, true
		}
	}
	return nil, false
}

// Sections 列出所有 section。
func (s *Studio) Sections() []*Section {
	return []*Section{s.Script, s.Captions, s.Niches, s.Analytics}
}

// GenerateScript 请求生成脚本，新脚本会清除之前的文案。
func (s *Studio) GenerateScript(ctx context.Context, brief Brief) (*catalog.Script, error) {
	brief, err := brief.Normalize()
	if err != nil {
		return nil, err
	}
	payload, err := s.Script.run(ctx, func(ctx context.Context) (catalog.Payload, error) {
		s.Captions.Reset()
		return s.generate(ctx, catalog.KindScriptPlanner, ScriptPrompt(brief), FallbackScript)
	})
	if err != nil {
		return nil, err
	}
	return payload.(*catalog.Script), nil
}

// GenerateCaptions 请求各平台文案与标签。
func (s *Studio) GenerateCaptions(ctx context.Context, brief Brief) (*catalog.Captions, error) {
	brief, err := brief.Normalize()
	if err != nil {
		return nil, err
	}
	payload, err := s.Captions.run(ctx, func(ctx context.Context) (catalog.Payload, error) {
		return s.generate(ctx, catalog.KindCaptionHashtags, CaptionPrompt(brief), FallbackCaptions)
	})
	if err != nil {
		return nil, err
	}
	return payload.(*catalog.Captions), nil
}

// SuggestTopics 请求 niche 下的趋势选题，响应缺少 niche 时沿用请求值。
func (s *Studio) SuggestTopics(ctx context.Context, niche string) (*catalog.Trends, error) {
	niche = strings.TrimSpace(niche)
	if niche == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "niche 不能为空")
	}
	payload, err := s.Niches.run(ctx, func(ctx context.Context) (catalog.Payload, error) {
		p, err := s.generate(ctx, catalog.KindTrendTopic, TrendPrompt(niche), FallbackTopics)
		if err != nil {
			return nil, err
		}
		trends := p.(*catalog.Trends)
		if strings.TrimSpace(trends.Niche) == "" {
			trends.Niche = niche
		}
		return trends, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.(*catalog.Trends), nil
}

// OptimizeHooks 请求分析 stats，stats 为空时使用样例数据。
func (s *Studio) OptimizeHooks(ctx context.Context, stats []VideoStat) (*catalog.Optimization, error) {
	if len(stats) == 0 {
		stats = SampleVideoStats
	}
	payload, err := s.Analytics.run(ctx, func(ctx context.Context) (catalog.Payload, error) {
		return s.generate(ctx, catalog.KindHookOptimizer, AnalysisPrompt(stats), FallbackAnalysis)
	})
	if err != nil {
		return nil, err
	}
	return payload.(*catalog.Optimization), nil
}

// generate 执行调用并把失败转为展示错误：优先使用 agent 的错误文本，否则使用 fallback。
func (s *Studio) generate(ctx context.Context, kind catalog.Kind, message, fallback string) (p catalog.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("agent call panicked", slog.String("kind", string(kind)), slog.Any("panic", r))
			p, err = nil, xerrors.New(CodeGenerationFailed, FallbackNetwork)
		}
	}()

	a, ok := s.registry.ByKind(kind)
	if !ok {
		return nil, xerrors.New(CodeGenerationFailed, fallback)
	}
	result := s.invoker.Call(ctx, message, a.ID)
	if !result.Success {
		msg := strings.TrimSpace(result.Error)
		if msg == "" {
			msg = fallback
		}
		return nil, xerrors.New(CodeGenerationFailed, msg)
	}
	payload, err := catalog.Decode(kind, result.Response)
	if err != nil {
		if !errors.Is(err, catalog.ErrEmptyResult) {
			s.log.Warn("agent payload rejected", slog.String("kind", string(kind)), slog.Any("error", err))
		}
		return nil, xerrors.New(CodeGenerationFailed, fallback)
	}
	return payload, nil
}
