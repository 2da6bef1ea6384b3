package agent

import (
	"encoding/json"
	"errors"
	"strings"
)

// defaultFailure 在失败没有可用描述时使用。
const defaultFailure = "agent call failed"

// Result 是返回给调用方的信封，Success 决定 Response 与 Error 中哪一个有值。
type Result struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Succeeded 原样包装收到的载荷。
func Succeeded(payload json.RawMessage) Result {
	return Result{Success: true, Response: payload}
}

// Failed 构造失败信封，消息不会为空。
func Failed(message string) Result {
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultFailure
	}
	return Result{Success: false, Error: message}
}

// Decode 将响应载荷解码到 v。
func (r Result) Decode(v any) error {
	if !r.Success {
		return r.Err()
	}
	if len(r.Response) == 0 {
		return errors.New("agent result has no response")
	}
	return json.Unmarshal(r.Response, v)
}

// Err 以 error 形式返回失败，成功时返回 nil。
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New(defaultFailure)
	}
	return errors.New(r.Error)
}
