package config

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleLogger livello della console: none, normal o debug
type ConsoleLogger struct {
	Level string `yaml:"level" validate:"required,oneof=none debug normal"`
}

// FileLogger log su file con rotazione
type FileLogger struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" validate:"required_unless=Level none"`
	MaxSizeMB   int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups  int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays  int    `yaml:"max_age_days" validate:"min=0"`
}

// LoggingConfig configurazione dei logger
type LoggingConfig struct {
	Console ConsoleLogger `yaml:"console"`
	File    FileLogger    `yaml:"file"`
}

func levelFor(name string) (zapcore.Level, bool) {
	switch name {
	case "debug":
		return zapcore.DebugLevel, true
	case "normal":
		return zapcore.InfoLevel, true
	}
	return zapcore.InfoLevel, false
}

// Prepare costruisce il logger: console su stdout/stderr (errori su stderr)
// più un eventuale file ruotato da lumberjack
func (conf *LoggingConfig) Prepare() (*zap.Logger, error) {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(ec)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	cores := []zapcore.Core{}
	if min, ok := levelFor(conf.Console.Level); ok {
		cores = append(cores,
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout),
				zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
					return min <= lvl && lvl < zapcore.ErrorLevel
				})),
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), highPriority),
		)
	}

	if min, ok := levelFor(conf.File.Level); ok && conf.File.Destination != "" {
		w := &lumberjack.Logger{
			Filename:   conf.File.Destination,
			MaxSize:    conf.File.MaxSizeMB,
			MaxBackups: conf.File.MaxBackups,
			MaxAge:     conf.File.MaxAgeDays,
			Compress:   true,
		}
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(min)))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named("twee-kit"), nil
}
