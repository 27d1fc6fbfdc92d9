// Package log configures the process-wide slog logger. Output goes to
// stderr: render worker subprocesses share stdout with the wire protocol,
// so nothing else may write there.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	once  sync.Once
	level slog.LevelVar
)

func install() {
	once.Do(func() {
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &level})
		slog.SetDefault(slog.New(handler))
	})
}

// Setup installs the JSON handler and applies the named level. Unknown
// names fall back to INFO. The handler is installed once; later calls
// adjust only the level, so a test's Setup("ERROR") wins regardless of
// ordering.
func Setup(name string) {
	if err := level.UnmarshalText([]byte(name)); err != nil {
		level.Set(slog.LevelInfo)
	}
	install()
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *slog.Logger {
	install()
	return slog.Default().With("component", name)
}

// WithGuild returns a logger tagged with the guild ID.
func WithGuild(id string) *slog.Logger {
	install()
	return slog.Default().With("guild_id", id)
}

// WithJob returns a logger tagged with the render job ID.
func WithJob(id string) *slog.Logger {
	install()
	return slog.Default().With("job_id", id)
}
