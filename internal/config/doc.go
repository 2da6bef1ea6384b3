// Package config 从 JSON 或 YAML 文件加载 studiod 配置，支持 STUDIO_* 环境变量覆盖，
// 并为每个键填充默认值。
package config
