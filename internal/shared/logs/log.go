package logs

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"SaveKeeper/internal/shared/config"
	"SaveKeeper/modules/kit/logx"
)

var (
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 构建进程级 logger：控制台彩色输出 + 可选 JSON 文件（lumberjack 切割）。
func Init(appName string, cfg config.LogConfig) error {
	level.SetLevel(parseLevel(cfg.Level))

	//    2026-01-28T10:00:00 INFO  savetool  save finished  manager.go:12
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	consoleSyncer := zapcore.Lock(os.Stderr)

	// 不写文件时只有控制台一路；写文件时用 NewTee 分两路，避免 ANSI 颜色写进文件。
	core := zapcore.NewCore(consoleEncoder, consoleSyncer, level)
	if cfg.FileDir != "" {
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		var fileWriter io.Writer = &lumberjack.Logger{
			Filename:   cfg.FileDir,
			MaxSize:    max(1, cfg.MaxSize), // MB，至少 1
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge),
			Compress:   cfg.Compress,
		}
		core = zapcore.NewTee(
			core,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileWriter), level),
		)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	l := zap.New(core, opts...).Named(appName)
	_ = logger.Sync()
	logger = l
	return nil
}

// SetLevel 动态调整日志级别（配置热加载时调用）。
func SetLevel(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

// Level 返回当前日志级别。
func Level() zapcore.Level {
	return level.Level()
}

// Logger 返回 logx 适配后的进程级 logger，库代码只拿这个接口。
func Logger() logx.Logger {
	return logx.NewZapLogger(logger)
}

// Sync 刷盘，进程退出前调用。
func Sync() error {
	return logger.Sync()
}

func parseLevel(s string) zapcore.Level {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal 输出 Fatal 级别日志，然后退出程序（os.Exit(1)）。
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}
