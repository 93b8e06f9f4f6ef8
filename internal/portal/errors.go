package portal

import (
	"errors"
	"fmt"
	"log/slog"
)

// terminalError 远端明确拒绝的错误，重试无济于事
type terminalError struct {
	msg string
}

func (e *terminalError) Error() string { return e.msg }

func terminalf(format string, args ...any) error {
	return &terminalError{msg: fmt.Sprintf(format, args...)}
}

// IsTerminal 判断错误是否为终态错误 (如不支持的文件类型、提交被拒)
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// withRetry 以固定次数重试 fn；终态错误立即返回
func (s *Session) withRetry(label string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsTerminal(lastErr) {
			return lastErr
		}
		slog.Warn("重试", "目标", label, "attempt", attempt, "max", s.opts.MaxRetries, "err", lastErr)
	}
	return fmt.Errorf("%s失败: %w", label, lastErr)
}
