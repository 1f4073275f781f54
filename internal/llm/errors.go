package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTransient 可重试的生成错误：超时、限流、服务端 5xx
var ErrTransient = errors.New("临时性生成错误")

// SchemaError 模型输出无法解码或不符合结构约束，不会自动重试
type SchemaError struct {
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("模型输出不符合结构: %s", e.Reason)
}

func transient(err error) error {
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// isTransientStatus 429、408 与 5xx 视为临时错误
func isTransientStatus(code int) bool {
	return code == 429 || code == 408 || code >= 500
}

// classifyCommon 处理与具体后端无关的错误类型
func classifyCommon(err error) error {
	if errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transient(err)
	}
	return err
}
