package render

import "errors"

// ErrTimedOut is returned by the pool when a render job misses its
// deadline. The occupied worker is torn down and its slot reclaimed.
var ErrTimedOut = errors.New("render timed out")

// maxDiagnosticRunes caps how much of an evaluation failure is carried
// back to users. Nothing from inside the sandbox gets past this.
const maxDiagnosticRunes = 200

// Error is a recoverable template failure: a syntax error or a runtime
// fault inside the sandbox.
type Error struct {
	Diagnostic string
}

func (e *Error) Error() string {
	return "render: " + e.Diagnostic
}

// NewError builds an Error with the diagnostic truncated.
func NewError(diagnostic string) *Error {
	return &Error{Diagnostic: truncate(diagnostic, maxDiagnosticRunes)}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
