package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	sugared = zap.NewNop().Sugar()
)

// SetupLogger 初始化日志配置：同时输出到控制台和按日期命名的日志文件
func SetupLogger() error {
	// 创建日志目录
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %v", err)
	}

	// 生成当前日期的日志文件名
	logFileName := filepath.Join(logDir, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02")))

	// 打开日志文件
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %v", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	// 控制台使用可读格式，文件使用JSON格式
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(logFile), zapcore.InfoLevel),
	)

	SetLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

// SetLogger 替换全局日志记录器（测试和命令行工具使用）
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugared = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugared
}

// Info 记录信息级别的日志
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warning 记录警告级别的日志
func Warning(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Error 记录错误级别的日志
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Sync 刷新缓冲的日志
func Sync() {
	_ = current().Sync()
}
