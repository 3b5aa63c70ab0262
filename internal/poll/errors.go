package poll

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrPollNotFound 表示投票不存在，或路由中的ID与表单中的ID不一致
	ErrPollNotFound = errors.New("找不到该投票")
	// ErrConcurrencyConflict 表示投票在读取之后被其他请求修改过，且仍然存在。
	// 这个错误不会自动重试，由调用方决定是否重新提交。
	ErrConcurrencyConflict = errors.New("投票已被其他请求修改")
)

// ValidationError 携带字段级的校验失败信息，键为JSON字段路径，例如 "candidates[1].label"
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "表单校验失败: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	// 同一字段只保留第一条错误
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
