package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"stylepipe/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// Prepare returns our standard logger - configured zap logger for use by the program.
func (conf *LoggingConfig) Prepare(rpt *Report) (*zap.Logger, error) {
	lp, hp := conf.consoleCores()

	fc, redirected, err := conf.fileCore(rpt)
	if err != nil {
		return nil, err
	}

	log := zap.New(zapcore.NewTee(hp, lp, fc), zap.AddCaller())
	if len(redirected) != 0 {
		log.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	return log.Named(misc.GetAppName()), nil
}

func consoleEncoderConfig(stream *os.File) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if EnableColorOutput(stream) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	}
	return ec
}

// consoleCores splits console output: errors go to stderr, everything else
// allowed by level to stdout.
func (conf *LoggingConfig) consoleCores() (lp, hp zapcore.Core) {
	var lowest zapcore.Level
	switch conf.ConsoleLogger.Level {
	case "normal":
		lowest = zapcore.InfoLevel
	case "debug":
		lowest = zapcore.DebugLevel
	default:
		return zapcore.NewNopCore(), zapcore.NewNopCore()
	}
	lp = zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig(os.Stdout)), zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lowest <= lvl && lvl < zapcore.ErrorLevel
		}))
	hp = zapcore.NewCore(newEncoder(consoleEncoderConfig(os.Stderr)), zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		}))
	return lp, hp
}

func openLog(fname, mode string) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(fname, flags, 0644)
}

// fileCore prepares file logging. When debug report is requested file log is
// always produced at debug level and becomes part of the report. If
// destination cannot be opened log goes to temporary file which name is
// returned.
func (conf *LoggingConfig) fileCore(rpt *Report) (zapcore.Core, string, error) {
	level, mode := conf.FileLogger.Level, conf.FileLogger.Mode
	if rpt != nil {
		level, mode = "debug", "overwrite"
	}

	var enabler zap.AtomicLevel
	switch level {
	case "debug":
		enabler = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "normal":
		enabler = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		return zapcore.NewNopCore(), "", nil
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	// capture panic output next to the log if possible
	ef, err := openLog(filepath.Join(filepath.Dir(conf.FileLogger.Destination), misc.GetAppName()+"-panic.log"), mode)
	if err != nil {
		ef, _ = os.CreateTemp("", misc.GetAppName()+"-panic.*.log")
	}
	if ef != nil {
		debug.SetCrashOutput(ef, debug.CrashOptions{})
		rpt.Store("panic.log", ef.Name())
		ef.Close()
	}

	var redirected string
	f, err := openLog(conf.FileLogger.Destination, mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+".*.log"); err != nil {
			return nil, "", fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
		}
		redirected = f.Name()
	}
	rpt.Store("final.log", f.Name())
	return zapcore.NewCore(enc, zapcore.Lock(f), enabler), redirected, nil
}

// When logging error to console - do not output verbose message.

type consoleEnc struct {
	zapcore.Encoder
}

func newEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return consoleEnc{zapcore.NewConsoleEncoder(cfg)}
}

func (c consoleEnc) Clone() zapcore.Encoder {
	return consoleEnc{c.Encoder.Clone()}
}

func (c consoleEnc) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	newFields := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			// drop errorVerbose, multierr and wrapped chains print plenty already
			f.Interface = errors.New(f.Interface.(error).Error())
		}
		newFields = append(newFields, f)
	}
	return c.Encoder.EncodeEntry(ent, newFields)
}
