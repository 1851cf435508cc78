package filter

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

var (
	sweeperOnce sync.Once
	sweeper     *cron.Cron
)

// sharedSweeper returns the process-wide scheduler that drains factory
// reclamation queues. It is started on first use and runs for the life of
// the process; factories only add and remove their own entries.
func sharedSweeper() *cron.Cron {
	sweeperOnce.Do(func() {
		logger := cronLogger{slog.Default().With("component", "filter-sweeper")}
		sweeper = cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		)
		sweeper.Start()
	})
	return sweeper
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
