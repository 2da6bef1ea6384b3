package studio

import (
	"fmt"
	"slices"
	"strings"

	xerrors "AutoViral-Studio/internal/errors"
)

var (
	// Tones 是可选的语气。
	Tones = []string{"Motivational", "Informative", "Entertaining", "Dark", "Luxury"}
	// Platforms 是可投放的平台。
	Platforms = []string{"Instagram", "TikTok", "Facebook", "YouTube Shorts"}
	// Lengths 是可选时长 (秒)。
	Lengths = []int{30, 45, 60}
	// Niches 是趋势研究视图列出的领域。
	Niches = []string{
		"Motivation", "Gym/Fitness", "Business", "AI/Tech", "Crypto", "Health", "Travel",
		"Food", "Fashion", "Comedy", "Education", "Music", "Gaming", "Lifestyle",
	}
)

const (
	DefaultTone   = "Informative"
	DefaultLength = 45
)

// DefaultPlatforms 返回默认平台选择的副本。
func DefaultPlatforms() []string {
	return []string{"Instagram", "TikTok"}
}

// Brief 是脚本与文案生成的输入。
type Brief struct {
	Topic         string   `json:"topic"`
	Tone          string   `json:"tone,omitempty"`
	Platforms     []string `json:"platforms,omitempty"`
	LengthSeconds int      `json:"length_seconds,omitempty"`
}

// Normalize 填充默认值并按选项列表校验，选项名不区分大小写并改写为规范拼写。
func (b Brief) Normalize() (Brief, error) {
	out := Brief{Topic: strings.TrimSpace(b.Topic), LengthSeconds: b.LengthSeconds}
	if out.Topic == "" {
		return Brief{}, xerrors.New(xerrors.CodeInvalidArgument, "topic 不能为空")
	}

	out.Tone = DefaultTone
	if tone := strings.TrimSpace(b.Tone); tone != "" {
		canonical, ok := lookup(Tones, tone)
		if !ok {
			return Brief{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的 tone: %s", tone))
		}
		out.Tone = canonical
	}

	if out.LengthSeconds == 0 {
		out.LengthSeconds = DefaultLength
	}
	if !slices.Contains(Lengths, out.LengthSeconds) {
		return Brief{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的视频长度: %d", out.LengthSeconds))
	}

	for _, p := range b.Platforms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		canonical, ok := lookup(Platforms, p)
		if !ok {
			return Brief{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的平台: %s", p))
		}
		if !slices.Contains(out.Platforms, canonical) {
			out.Platforms = append(out.Platforms, canonical)
		}
	}
	if len(out.Platforms) == 0 {
		out.Platforms = DefaultPlatforms()
	}
	return out, nil
}

// SearchNiches 按不区分大小写的子串过滤 Niches。
func SearchNiches(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(Niches))
	for _, n := range Niches {
		if query == "" || strings.Contains(strings.ToLower(n), query) {
			out = append(out, n)
		}
	}
	return out
}

func lookup(options []string, value string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return o, true
		}
	}
	return "", false
}
