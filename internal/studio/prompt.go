package studio

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoStat 是一条已发布视频的表现数据。
type VideoStat struct {
	Title          string  `json:"title"`
	Niche          string  `json:"niche"`
	Views          int     `json:"views"`
	CompletionRate float64 `json:"completion_rate"`
	Likes          int     `json:"likes"`
	Hook           string  `json:"hook"`
}

// SampleVideoStats 是分析视图自带的样例数据。
var SampleVideoStats = []VideoStat{
	{Title: "5 AI Tools You Need", Niche: "AI/Tech", Views: 45200, CompletionRate: 78, Likes: 3200, Hook: "Stop scrolling, this will change everything"},
	{Title: "Morning Routine for Success", Niche: "Motivation", Views: 23100, CompletionRate: 65, Likes: 1800, Hook: "Most people waste their mornings"},
	{Title: "Crypto Market Update", Niche: "Crypto", Views: 12500, CompletionRate: 45, Likes: 890, Hook: "Bitcoin just did something crazy"},
}

// ScriptPrompt 请求脚本规划 agent 生成分镜脚本。
func ScriptPrompt(b Brief) string {
	return fmt.Sprintf("Generate a %d-second %s short-form video script for the topic: \"%s\". Target platforms: %s.",
		b.LengthSeconds, b.Tone, b.Topic, strings.Join(b.Platforms, ", "))
}

// CaptionPrompt 请求各平台的文案与标签。
func CaptionPrompt(b Brief) string {
	return fmt.Sprintf("Generate platform-optimized captions and hashtags for a %s video about \"%s\". Target platforms: %s.",
		b.Tone, b.Topic, strings.Join(b.Platforms, ", "))
}

// TrendPrompt 请求 niche 下的五个趋势选题。
func TrendPrompt(niche string) string {
	return fmt.Sprintf("Research current trending topics in the %s niche for short-form vertical video content. Provide 5 trending topic suggestions.", niche)
}

// AnalysisPrompt 请求开场优化 agent 分析 stats。
func AnalysisPrompt(stats []VideoStat) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following video performance data and provide optimization recommendations:\n\n")
	for i, s := range stats {
		fmt.Fprintf(&sb, "Video %d: \"%s\" - Niche: %s - Views: %s - Completion Rate: %s%% - Likes: %s - Hook: \"%s\"\n",
			i+1, s.Title, s.Niche, compact(s.Views), strconv.FormatFloat(s.CompletionRate, 'f', -1, 64), compact(s.Likes), s.Hook)
	}
	sb.WriteString("\nProvide improved hooks, A/B test suggestions, posting time recommendations, and content strategy insights.")
	return sb.String()
}

// compact 按仪表盘格式渲染数量 (890、3.2K、1.5M)。
func compact(n int) string {
	switch {
	case n >= 1_000_000:
		return trimZero(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return trimZero(float64(n)/1_000) + "K"
	default:
		return strconv.Itoa(n)
	}
}

func trimZero(f float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(f, 'f', 1, 64), ".0")
}
