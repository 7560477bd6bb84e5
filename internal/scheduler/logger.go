package scheduler

import "github.com/rs/zerolog"

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func newCronLogger(l *zerolog.Logger) cronLogger {
	return cronLogger{log: l.With().Str("component", "scheduler").Logger()}
}

// Info receives cron's per-tick chatter, so it logs at debug.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
