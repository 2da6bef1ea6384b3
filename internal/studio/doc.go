// Package studio 驱动四个工作台视图 (脚本、文案、趋势研究与开场分析)。
// 每个视图拥有一个 Section，同一时间只允许一次 agent 调用，并保留最近一次结果。
package studio
