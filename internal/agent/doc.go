// Package agent 是外部 AI agent 服务的客户端。每次调用发送一个携带任务描述与
// agent id 的 POST 请求，响应被折叠为 Result 信封，调用方根据 Success 分支处理。
package agent
