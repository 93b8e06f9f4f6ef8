package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup 初始化全局日志配置
// levelStr: "debug", "info", "warn", "error"
// logPath: 日志文件路径 (为空则只输出到控制台)
func Setup(levelStr string, logPath string) error {
	level := parseLevel(levelStr)

	var writer io.Writer = os.Stdout
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return err
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		// 同时输出到控制台和文件
		writer = io.MultiWriter(os.Stdout, file)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // 仅 Debug 模式下显示文件名和行号
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(writer, opts)))
	return nil
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
