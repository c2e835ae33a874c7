package coalescer

import "log/slog"

// LogAnalyzer is a PathAnalyzer that emits a Debug-level slog record for
// every enter/exit, useful for local diagnosis when no real external
// watchdog is attached. Chatty by design: it is meant to be enabled only
// while chasing a specific liveness question, not left on in production.
type LogAnalyzer struct {
	logger *slog.Logger
}

// NewLogAnalyzer wraps logger (or slog.Default() if nil) as a PathAnalyzer.
func NewLogAnalyzer(logger *slog.Logger) *LogAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAnalyzer{logger: logger}
}

func (a *LogAnalyzer) Enter(path string) {
	a.logger.Debug("coalescer: path enter", "path", path)
}

func (a *LogAnalyzer) Exit(path string) {
	a.logger.Debug("coalescer: path exit", "path", path)
}
