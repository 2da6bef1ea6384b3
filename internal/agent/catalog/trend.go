package catalog

import "strings"

// VelocityLevel 是趋势速度文本的分级。
type VelocityLevel string

const (
	VelocityHot    VelocityLevel = "hot"
	VelocityRising VelocityLevel = "rising"
	VelocitySteady VelocityLevel = "steady"
)

// ClassifyVelocity 将速度文本映射为分级，不区分大小写。
func ClassifyVelocity(text string) VelocityLevel {
	v := strings.ToLower(text)
	switch {
	case strings.Contains(v, "hot"), strings.Contains(v, "viral"), strings.Contains(v, "exploding"):
		return VelocityHot
	case strings.Contains(v, "rising"), strings.Contains(v, "growing"):
		return VelocityRising
	default:
		return VelocitySteady
	}
}

// InterestPercent 将 0..10 的热度转换为截断到 0..100 的百分比。
func InterestPercent(level float64) int {
	switch {
	case level <= 0:
		return 0
	case level >= 10:
		return 100
	default:
		return int(level*10 + 0.5)
	}
}
