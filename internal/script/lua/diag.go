package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Diagnostics for guest failures. Compile and runtime errors cross the
// guest boundary as text; these helpers pull a best-effort source line out
// of compiler output and flatten a runtime traceback onto one line so a
// whole failure fits a single log entry.

// SyntaxErrorLine extracts a 1-based source line number from a compiler
// diagnostic. It scans for a "(<line>," marker first, then for "line:<n>"
// which is the form gopher-lua's parser emits. ok reports whether any
// marker was found.
func SyntaxErrorLine(msg string) (int, bool) {
	if n, ok := scanParenLine(msg); ok {
		return n, true
	}
	return scanLabeledLine(msg)
}

// scanParenLine finds the first "(<digits>," occurrence.
func scanParenLine(msg string) (int, bool) {
	for i := 0; i < len(msg); i++ {
		if msg[i] != '(' {
			continue
		}
		j := i + 1
		n := 0
		for j < len(msg) && msg[j] >= '0' && msg[j] <= '9' {
			n = n*10 + int(msg[j]-'0')
			j++
		}
		if j > i+1 && j < len(msg) && msg[j] == ',' {
			return n, true
		}
	}
	return 0, false
}

// scanLabeledLine finds the first "line:<digits>" occurrence.
func scanLabeledLine(msg string) (int, bool) {
	const label = "line:"
	idx := strings.Index(msg, label)
	if idx < 0 {
		return 0, false
	}
	j := idx + len(label)
	n := 0
	start := j
	for j < len(msg) && msg[j] >= '0' && msg[j] <= '9' {
		n = n*10 + int(msg[j]-'0')
		j++
	}
	if j == start {
		return 0, false
	}
	return n, true
}

// DescribeError renders a guest failure as a single diagnostic line.
// For structured guest-runtime errors the originating message (which
// carries the source position) is followed by the call stack, one frame
// per " <- " segment, innermost first.
func DescribeError(err error) string {
	apiErr, ok := err.(*lua.ApiError)
	if !ok {
		return err.Error()
	}

	msg := strings.TrimSpace(apiErr.Object.String())
	frames := TracebackFrames(apiErr.StackTrace)
	if len(frames) == 0 {
		return msg
	}
	return msg + " | stack: " + strings.Join(frames, " <- ")
}

// TracebackFrames splits a gopher-lua "stack traceback:" block into
// trimmed per-frame descriptions, dropping the header line.
func TracebackFrames(trace string) []string {
	var frames []string
	for _, line := range strings.Split(trace, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "stack traceback") {
			continue
		}
		frames = append(frames, line)
	}
	return frames
}

// IsSyntaxError reports whether a DoFile failure came from the compiler
// rather than from executing the script's top level.
func IsSyntaxError(err error) bool {
	apiErr, ok := err.(*lua.ApiError)
	return ok && apiErr.Type == lua.ApiErrorSyntax
}

// IsFileError reports whether a DoFile failure came from reading the
// source file.
func IsFileError(err error) bool {
	apiErr, ok := err.(*lua.ApiError)
	return ok && apiErr.Type == lua.ApiErrorFile
}

// IsRuntimeError reports whether a failure is a structured guest-runtime
// error (as opposed to a host-side panic or I/O problem).
func IsRuntimeError(err error) bool {
	apiErr, ok := err.(*lua.ApiError)
	if !ok {
		return false
	}
	return apiErr.Type == lua.ApiErrorRun || apiErr.Type == lua.ApiErrorError
}
