package core

import "github.com/hupe1980/lifemesh/logging"

// turnLogger decorates every record with the turn and agent it belongs to.
type turnLogger struct {
	logger logging.Logger
	fields []any
}

func newTurnLogger(l logging.Logger, turnID, agent string) *turnLogger {
	return &turnLogger{logger: logging.OrNoOp(l), fields: []any{"turn", turnID, "agent", agent}}
}

func (l *turnLogger) with(args []any) []any {
	return append(append(make([]any, 0, len(l.fields)+len(args)), l.fields...), args...)
}

// Logger returns the undecorated logger.
func (l *turnLogger) Logger() logging.Logger { return l.logger }

// LogDebug logs at debug level with the turn fields.
func (l *turnLogger) LogDebug(msg string, args ...any) { l.logger.Debug(msg, l.with(args)...) }

// LogInfo logs at info level with the turn fields.
func (l *turnLogger) LogInfo(msg string, args ...any) { l.logger.Info(msg, l.with(args)...) }

// LogWarn logs at warn level with the turn fields.
func (l *turnLogger) LogWarn(msg string, args ...any) { l.logger.Warn(msg, l.with(args)...) }

// LogError logs at error level with the turn fields.
func (l *turnLogger) LogError(msg string, args ...any) { l.logger.Error(msg, l.with(args)...) }
