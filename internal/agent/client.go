package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "AutoViral-Studio/internal/errors"
	"AutoViral-Studio/internal/observability/metrics"
	"AutoViral-Studio/pkg/logger"
)

const (
	// maxResponseBytes 限制成功响应的读取长度。
	maxResponseBytes = 8 << 20
	// maxErrorBytes 限制错误响应保留到消息中的长度。
	maxErrorBytes = 2048
)

const (
	CodeAgentTransport xerrors.Code = "AGENT_TRANSPORT"
	CodeAgentStatus    xerrors.Code = "AGENT_STATUS"
	CodeAgentMalformed xerrors.Code = "AGENT_MALFORMED"
)

func init() {
	xerrors.Register(CodeAgentTransport, xerrors.Attributes{
		Message:   "Network error",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
	xerrors.Register(CodeAgentStatus, xerrors.Attributes{
		Message:   "agent returned an error status",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
	xerrors.Register(CodeAgentMalformed, xerrors.Attributes{
		Message:  "malformed agent response",
		Severity: xerrors.SeverityWarning,
	})
}

// Request 是发送给 agent 服务的请求体。
type Request struct {
	Message   string `json:"message"`
	AgentID   string `json:"agent_id"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Config 描述固定的外部 agent 端点。
type Config struct {
	Endpoint string
	APIKey   string
	// UserID 非空时随每个请求发送。
	UserID string
	// HTTPClient 默认不设超时，调用方通过 context 控制时长。
	HTTPClient *http.Client
	// Label 将 agent id 映射为指标标签 (通常是 agent 种类)。返回空串或未设置时
	// 计入 metrics.AgentOther。
	Label func(agentID string) string
}

// Client 发起 agent 调用，不持有可变状态，可并发使用。
type Client struct {
	endpoint   string
	apiKey     string
	userID     string
	httpClient *http.Client
	label      func(string) string
	log        *slog.Logger
}

// New 校验配置并创建 Client。
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "agent endpoint 不能为空")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("agent endpoint 无效: %q", endpoint))
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   parsed.String(),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		userID:     strings.TrimSpace(cfg.UserID),
		httpClient: httpClient,
		label:      cfg.Label,
		log:        logger.Named("agent"),
	}, nil
}

// Endpoint 返回调用的目标 URL。
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call 向 agentID 发送 message，总是返回结果信封。
func (c *Client) Call(ctx context.Context, message, agentID string) Result {
	payload, err := c.Do(ctx, Request{Message: message, AgentID: agentID})
	if err != nil {
		return Failed(Describe(err))
	}
	return Succeeded(payload)
}

// Do 执行一次 agent 调用，返回原始载荷或带错误码的错误
// (CodeInvalidArgument、CodeAgentTransport、CodeAgentStatus、CodeAgentMalformed)。
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.AgentID = strings.TrimSpace(req.AgentID)
	if req.Message == "" {
		metrics.ObserveAgentCall(c.metricLabel(req.AgentID), metrics.OutcomeRejected, 0)
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "message 不能为空")
	}
	if req.AgentID == "" {
		metrics.ObserveAgentCall(c.metricLabel(req.AgentID), metrics.OutcomeRejected, 0)
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "agent_id 不能为空")
	}
	if req.UserID == "" {
		req.UserID = c.userID
	}
	if req.SessionID == "" {
		req.SessionID = req.AgentID + "-" + uuid.NewString()
	}

	started := time.Now()
	payload, outcome, err := c.post(ctx, req)
	elapsed := time.Since(started)
	metrics.ObserveAgentCall(c.metricLabel(req.AgentID), outcome, elapsed)

	if err != nil {
		c.log.Warn("agent call failed",
			slog.String("agent_id", req.AgentID),
			slog.String("session_id", req.SessionID),
			slog.String("outcome", outcome),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}
	c.log.Debug("agent call finished",
		slog.String("agent_id", req.AgentID),
		slog.String("session_id", req.SessionID),
		slog.Int("bytes", len(payload)),
		slog.Duration("elapsed", elapsed),
	)
	return payload, nil
}

func (c *Client) metricLabel(agentID string) string {
	if c.label == nil || agentID == "" {
		return metrics.AgentOther
	}
	if label := c.label(agentID); label != "" {
		return label
	}
	return metrics.AgentOther
}

func (c *Client) post(ctx context.Context, req Request) (json.RawMessage, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, metrics.OutcomeRejected, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode agent request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, metrics.OutcomeTransport, xerrors.Wrap(CodeAgentTransport, err, "")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, metrics.OutcomeTransport, xerrors.Wrap(CodeAgentTransport, err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		detail := statusDetail(resp.StatusCode, data)
		return nil, metrics.OutcomeStatus, xerrors.New(CodeAgentStatus,
			fmt.Sprintf("agent returned status %d: %s", resp.StatusCode, detail),
			xerrors.WithMetadata("status", fmt.Sprint(resp.StatusCode)),
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, metrics.OutcomeTransport, xerrors.Wrap(CodeAgentTransport, err, "")
	}
	if len(data) > maxResponseBytes {
		return nil, metrics.OutcomeMalformed, xerrors.New(CodeAgentMalformed, "malformed agent response: body too large")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, metrics.OutcomeMalformed, xerrors.New(CodeAgentMalformed, "malformed agent response: empty body")
	}
	if !json.Valid(data) {
		return nil, metrics.OutcomeMalformed, xerrors.New(CodeAgentMalformed, "malformed agent response: body is not JSON")
	}
	return json.RawMessage(data), metrics.OutcomeSuccess, nil
}

// statusDetail 从错误响应中提取可读原因。
func statusDetail(status int, data []byte) string {
	var decoded struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if json.Unmarshal(data, &decoded) == nil {
		var text string
		if json.Unmarshal(decoded.Error, &text) == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(decoded.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
		if m := strings.TrimSpace(decoded.Message); m != "" {
			return m
		}
		if d := strings.TrimSpace(decoded.Detail); d != "" {
			return d
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// Describe 将 err 渲染为失败信封中的可读文本。
func Describe(err error) string {
	if err == nil {
		return ""
	}
	coded, ok := xerrors.From(err)
	if !ok {
		return err.Error()
	}
	message := coded.Message()
	if cause := coded.Unwrap(); cause != nil {
		return fmt.Sprintf("%s: %v", message, cause)
	}
	return message
}
