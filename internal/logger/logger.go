package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*logrus.Logger
	fileLogger *logrus.Logger
}

var defaultLogger *Logger

func init() {
	// 控制台日志配置
	consoleLogger := logrus.New()
	consoleLogger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	consoleLogger.SetOutput(os.Stdout)
	consoleLogger.SetLevel(logrus.DebugLevel)

	// 文件日志默认丢弃，调用 Setup 后才写入磁盘
	fileLogger := logrus.New()
	fileLogger.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     false,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	fileLogger.SetOutput(io.Discard)
	fileLogger.SetLevel(logrus.InfoLevel)

	defaultLogger = &Logger{
		Logger:     consoleLogger,
		fileLogger: fileLogger,
	}
}

// Setup 按配置启用文件日志与日志级别
func Setup(c config.Log) error {
	if c.Level != "" {
		level, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return fmt.Errorf("无效的日志级别 %q: %w", c.Level, err)
		}
		defaultLogger.Logger.SetLevel(level)
	}

	if c.Dir == "" {
		return nil
	}

	// 创建日志目录
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("无法创建日志目录: %w", err)
	}

	filename := c.Filename
	if filename == "" {
		filename = "talk-wrapped.log"
	}

	// 使用lumberjack进行日志轮转
	defaultLogger.fileLogger.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(c.Dir, filename),
		MaxSize:    orDefault(c.MaxSizeMB, 10),
		MaxBackups: orDefault(c.MaxBackups, 10),
		MaxAge:     orDefault(c.MaxAgeDays, 30),
		Compress:   true,
	})
	return nil
}

// SetOutput 替换控制台输出（测试时静默日志）
func SetOutput(w io.Writer) {
	defaultLogger.Logger.SetOutput(w)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func Infof(format string, args ...any) {
	defaultLogger.Logger.Infof(format, args...)
	defaultLogger.fileLogger.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Logger.Warnf(format, args...)
	defaultLogger.fileLogger.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	defaultLogger.Logger.Errorf(format, args...)
	defaultLogger.fileLogger.Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	defaultLogger.fileLogger.Errorf(format, args...)
	defaultLogger.Logger.Fatalf(format, args...)
}

func Debugf(format string, args ...any) {
	defaultLogger.Logger.Debugf(format, args...)
	defaultLogger.fileLogger.Debugf(format, args...)
}
