package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局日志实例
var Log *zap.Logger

// Init 初始化日志
// env 为 "prod" 时使用 JSON 格式输出，其它环境使用控制台格式方便阅读
func Init(env string, debug bool) {
	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder

	if env == "prod" {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	Log = zap.New(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zap.AddCaller(),
	)

	zap.ReplaceGlobals(Log)
	log.Println("Logger initialized. Environment:", env)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
