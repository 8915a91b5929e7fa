package domain

import "strings"

// LogTag is a presentation hint for one line of packaging output.
type LogTag string

const (
	LogTagPlain   LogTag = "plain"
	LogTagInfo    LogTag = "info"
	LogTagWarning LogTag = "warning"
	LogTagError   LogTag = "error"
	LogTagDebug   LogTag = "debug"
	LogTagSuccess LogTag = "success"
)

var (
	errorKeywords   = []string{"error", "failed", "traceback", "失败"}
	warningKeywords = []string{"warn", "警告"}
	successKeywords = []string{"success", "build complete", "completed successfully", "打包成功"}
)

// ClassifyLine tags a line by keyword. The result is cosmetic: job outcome
// is decided by the exit status only.
func ClassifyLine(line string) LogTag {
	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, errorKeywords):
		return LogTagError
	case containsAny(lower, warningKeywords):
		return LogTagWarning
	case containsAny(lower, successKeywords):
		return LogTagSuccess
	case strings.Contains(lower, "debug"):
		return LogTagDebug
	case strings.Contains(lower, "info"):
		return LogTagInfo
	default:
		return LogTagPlain
	}
}

// LooksLikeCompletion reports whether a line reads like a finished or failed
// build message.
func LooksLikeCompletion(line string) bool {
	switch ClassifyLine(line) {
	case LogTagSuccess, LogTagError:
		return true
	}
	lower := strings.ToLower(line)
	return strings.Contains(lower, "build completed") || strings.Contains(lower, "finished")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
