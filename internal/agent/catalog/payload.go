package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrEmptyResult 表示响应中没有可用的 result。
var ErrEmptyResult = errors.New("agent reply has no result")

// Payload 是 *Script、*Captions、*Trends 或 *Optimization 之一。
type Payload interface {
	Kind() Kind
}

// Scene 是脚本中的一个镜头。
type Scene struct {
	SceneNumber       int     `json:"scene_number"`
	VisualType        string  `json:"visual_type"`
	VisualDescription string  `json:"visual_description"`
	VoiceoverText     string  `json:"voiceover_text"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Transition        string  `json:"transition"`
}

// Script 是脚本规划 agent 的结果。
type Script struct {
	HookLine      string  `json:"hook_line"`
	TotalDuration float64 `json:"total_duration"`
	MusicMood     string  `json:"music_mood"`
	PacingNotes   string  `json:"pacing_notes"`
	Scenes        []Scene `json:"scenes"`
}

func (*Script) Kind() Kind { return KindScriptPlanner }

// PlatformCaption 是单个平台的文案。
type PlatformCaption struct {
	Platform        string   `json:"platform"`
	Caption         string   `json:"caption"`
	Hashtags        []string `json:"hashtags"`
	CallToAction    string   `json:"call_to_action"`
	BestPostingTime string   `json:"best_posting_time"`
}

// Captions 是文案 agent 的结果。
type Captions struct {
	Platforms []PlatformCaption `json:"platforms"`
}

func (*Captions) Kind() Kind { return KindCaptionHashtags }

// Topic 是一条趋势选题。
type Topic struct {
	Title         string  `json:"title"`
	TrendVelocity string  `json:"trend_velocity"`
	Rationale     string  `json:"rationale"`
	ContentAngle  string  `json:"content_angle"`
	InterestLevel float64 `json:"interest_level"`
}

// Velocity 对选题的趋势速度分级。
func (t Topic) Velocity() VelocityLevel { return ClassifyVelocity(t.TrendVelocity) }

// InterestPercent 返回 0..100 的热度百分比。
func (t Topic) InterestPercent() int { return InterestPercent(t.InterestLevel) }

// Trends 是趋势 agent 的结果。
type Trends struct {
	Niche  string  `json:"niche"`
	Topics []Topic `json:"topics"`
}

func (*Trends) Kind() Kind { return KindTrendTopic }

// HookRewrite 是原始开场与改进版本的对照。
type HookRewrite struct {
	Original  string `json:"original_hook"`
	Improved  string `json:"improved_hook"`
	Reasoning string `json:"reasoning"`
}

// ABTest 给出一组对比测试的开场。
type ABTest struct {
	HookA     string `json:"hook_a"`
	HookB     string `json:"hook_b"`
	Rationale string `json:"test_rationale"`
}

// VideoIdea 是下一条视频的建议。
type VideoIdea struct {
	Topic     string `json:"topic"`
	Hook      string `json:"hook"`
	Rationale string `json:"rationale"`
}

// Optimization 是开场优化 agent 的结果。
type Optimization struct {
	PerformanceSummary     string        `json:"performance_summary"`
	ImprovedHooks          []HookRewrite `json:"improved_hooks"`
	ABTestSuggestions      []ABTest      `json:"ab_test_suggestions"`
	PostingRecommendations string        `json:"posting_recommendations"`
	ContentStrategy        string        `json:"content_strategy"`
	NextVideoSuggestions   []VideoIdea   `json:"next_video_suggestions"`
}

func (*Optimization) Kind() Kind { return KindHookOptimizer }

// Decode 将 agent 响应中的 result 解码为 kind 对应的载荷。缺失或类型不符的字段
// 取零值，非数组的列表解码为空列表。以 JSON 字符串形式给出的 result 会先经过修复再解析。
func Decode(kind Kind, raw json.RawMessage) (Payload, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}
	result, err := extractResult(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindScriptPlanner:
		return decodeScript(result), nil
	case KindCaptionHashtags:
		return decodeCaptions(result), nil
	case KindTrendTopic:
		return decodeTrends(result), nil
	default:
		return decodeOptimization(result), nil
	}
}

// extractResult 返回 reply 中的 result 对象。result 缺失或为假值 (null、""、false、0)
// 时返回 ErrEmptyResult；其余无法读取为对象的值按空对象处理。
func extractResult(raw json.RawMessage) (map[string]any, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("agent reply is not an object: %w", err)
	}
	member, ok := envelope["result"]
	if !ok || falsy(member) {
		return nil, ErrEmptyResult
	}

	var text string
	if json.Unmarshal(member, &text) == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, ErrEmptyResult
		}
		repaired, err := jsonrepair.JSONRepair(text)
		if err != nil {
			return map[string]any{}, nil
		}
		member = json.RawMessage(repaired)
	}

	var result map[string]any
	if err := json.Unmarshal(member, &result); err != nil || result == nil {
		return map[string]any{}, nil
	}
	return result, nil
}

func falsy(member json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(member, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	}
	return false
}

func decodeScript(m map[string]any) *Script {
	s := &Script{
		HookLine:      str(m["hook_line"]),
		TotalDuration: num(m["total_duration"]),
		MusicMood:     str(m["music_mood"]),
		PacingNotes:   str(m["pacing_notes"]),
		Scenes:        []Scene{},
	}
	for i, item := range objects(m["scenes"]) {
		scene := Scene{
			SceneNumber:       int(num(item["scene_number"])),
			VisualType:        str(item["visual_type"]),
			VisualDescription: str(item["visual_description"]),
			VoiceoverText:     str(item["voiceover_text"]),
			DurationSeconds:   num(item["duration_seconds"]),
			Transition:        str(item["transition"]),
		}
		if scene.SceneNumber == 0 {
			scene.SceneNumber = i + 1
		}
		s.Scenes = append(s.Scenes, scene)
	}
	return s
}

func decodeCaptions(m map[string]any) *Captions {
	c := &Captions{Platforms: []PlatformCaption{}}
	for _, item := range objects(m["platforms"]) {
		c.Platforms = append(c.Platforms, PlatformCaption{
			Platform:        str(item["platform"]),
			Caption:         str(item["caption"]),
			Hashtags:        strs(item["hashtags"]),
			CallToAction:    str(item["call_to_action"]),
			BestPostingTime: str(item["best_posting_time"]),
		})
	}
	return c
}

func decodeTrends(m map[string]any) *Trends {
	t := &Trends{Niche: str(m["niche"]), Topics: []Topic{}}
	for _, item := range objects(m["topics"]) {
		t.Topics = append(t.Topics, Topic{
			Title:         str(item["title"]),
			TrendVelocity: str(item["trend_velocity"]),
			Rationale:     str(item["rationale"]),
			ContentAngle:  str(item["content_angle"]),
			InterestLevel: num(item["interest_level"]),
		})
	}
	return t
}

func decodeOptimization(m map[string]any) *Optimization {
	o := &Optimization{
		PerformanceSummary:     str(m["performance_summary"]),
		PostingRecommendations: str(m["posting_recommendations"]),
		ContentStrategy:        str(m["content_strategy"]),
		ImprovedHooks:          []HookRewrite{},
		ABTestSuggestions:      []ABTest{},
		NextVideoSuggestions:   []VideoIdea{},
	}
	for _, item := range objects(m["improved_hooks"]) {
		o.ImprovedHooks = append(o.ImprovedHooks, HookRewrite{
			Original:  str(item["original_hook"]),
			Improved:  str(item["improved_hook"]),
			Reasoning: str(item["reasoning"]),
		})
	}
	for _, item := range objects(m["ab_test_suggestions"]) {
		o.ABTestSuggestions = append(o.ABTestSuggestions, ABTest{
			HookA:     str(item["hook_a"]),
			HookB:     str(item["hook_b"]),
			Rationale: str(item["test_rationale"]),
		})
	}
	for _, item := range objects(m["next_video_suggestions"]) {
		o.NextVideoSuggestions = append(o.NextVideoSuggestions, VideoIdea{
			Topic:     str(item["topic"]),
			Hook:      str(item["hook"]),
			Rationale: str(item["rationale"]),
		})
	}
	return o
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func objects(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func strs(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s := strings.TrimSpace(str(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
