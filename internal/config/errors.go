package config

import "fmt"

// FatalConfigError 缺少必需配置，无法降级运行
type FatalConfigError struct {
	Field  string
	Reason string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func fatalf(field, format string, args ...any) error {
	return &FatalConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
