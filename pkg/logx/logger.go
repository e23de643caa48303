package logx

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap core behind the logx API.
type Logger struct {
	config   *Config
	zap      *zap.Logger
	out      *swapWriter
	mu       sync.RWMutex
	exitFunc func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var w io.Writer = config.Output
	if w == nil {
		w = os.Stdout
	}

	l := &Logger{
		config:   config,
		out:      &swapWriter{w: w},
		exitFunc: os.Exit,
	}

	core := zapcore.NewCore(newEncoder(config), zapcore.AddSync(l.out), zapcore.DebugLevel)

	opts := []zap.Option{zap.WithFatalHook(deferredExit{})}
	if config.EnableCaller {
		// log() -> zap, plus the public wrapper that called log()
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	l.zap = zap.New(core, opts...)
	return l
}

func newEncoder(config *Config) zapcore.Encoder {
	switch config.Format {
	case FormatJSON:
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "timestamp"
		enc.EncodeTime = timeEncoder(config.TimeFormat)
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(enc)
	case FormatCloudWatch:
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "timestamp"
		enc.LevelKey = "level"
		enc.MessageKey = "message"
		enc.CallerKey = "caller"
		enc.StacktraceKey = ""
		enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(enc)
	default:
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = timeEncoder(config.TimeFormat)
		if config.EnableColors {
			enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			enc.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		return zapcore.NewConsoleEncoder(enc)
	}
}

func timeEncoder(layout string) zapcore.TimeEncoder {
	switch layout {
	case "unix":
		return zapcore.EpochTimeEncoder
	case "unixmilli":
		return zapcore.EpochMillisTimeEncoder
	case "":
		return zapcore.RFC3339TimeEncoder
	default:
		return zapcore.TimeEncoderOfLayout(layout)
	}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Level
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.out.set(w)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) log(level Level, msg string, fields Fields, data interface{}, err error) {
	if !l.GetLevel().Enabled(level) {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+2)
	for k, v := range fields {
		if k == "error" && err != nil {
			continue
		}
		zf = append(zf, zap.Any(k, v))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	if data != nil {
		zf = append(zf, zap.Any("data", data))
	}

	l.zap.Log(level.zapLevel(), msg, zf...)
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

// WithStruct creates a new entry with structured data
func (l *Logger) WithStruct(data interface{}) *Entry {
	return newEntry(l).WithStruct(data)
}

// swapWriter lets SetOutput replace the sink without rebuilding the zap core.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// deferredExit keeps zap from calling os.Exit; Fatal paths call Logger.exit themselves.
type deferredExit struct{}

func (deferredExit) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

func (l *Logger) exit(code int) {
	_ = l.zap.Sync()
	l.exitFunc(code)
}
