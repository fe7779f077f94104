package logparse

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// SeverityRegex matches common severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|ASSERT|EXCEPTION)\b`)

// NormalizeSeverity converts various severity level formats to consistent all caps short forms.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC":
		return "TRACE"
	case "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF", "LOG":
		return "INFO"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARN"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "ASSERT", "ASSERTION", "ASRT":
		return "ASSERT"
	case "EXCEPTION", "EXC", "EXCN":
		return "EXCEPTION"
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT":
		return "FATAL"
	case "PANIC", "PNC":
		return "FATAL"
	default:
		if len(normalized) >= 4 {
			prefix := normalized[:4]
			switch prefix {
			case "INFO":
				return "INFO"
			case "WARN":
				return "WARN"
			case "ERRO":
				return "ERROR"
			case "DEBU":
				return "DEBUG"
			case "TRAC":
				return "TRACE"
			case "ASSE":
				return "ASSERT"
			case "EXCE":
				return "EXCEPTION"
			case "FATA", "CRIT":
				return "FATAL"
			}
		}
		return "INFO"
	}
}

// ExtractSeverityFromText extracts severity level from log message text.
func ExtractSeverityFromText(message string) string {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeSeverity(matches[1])
	}
	return "INFO"
}

// KindFromSeverity maps a severity string onto the console log kinds.
// TRACE/DEBUG/INFO collapse into KindLog; FATAL is treated as an exception.
func KindFromSeverity(severity string) model.LogKind {
	switch NormalizeSeverity(severity) {
	case "WARN":
		return model.KindWarning
	case "ERROR":
		return model.KindError
	case "ASSERT":
		return model.KindAssert
	case "EXCEPTION", "FATAL":
		return model.KindException
	default:
		return model.KindLog
	}
}

// ParseKind accepts both host kind names ("Exception", "Assert", "Log") and
// conventional level names ("warn", "fatal", "debug").
func ParseKind(name string) model.LogKind {
	if kind, ok := model.ParseLogKind(name); ok {
		return kind
	}
	return KindFromSeverity(name)
}

// ExtractKindFromText extracts the log kind from free-form message text.
func ExtractKindFromText(message string) model.LogKind {
	return KindFromSeverity(ExtractSeverityFromText(message))
}

// SeverityFromOTELNumber converts an OTEL severity number (1-24) to a severity string.
// It returns "" for numbers outside the defined ranges.
func SeverityFromOTELNumber(number int) string {
	switch {
	case number >= 1 && number <= 4:
		return "TRACE"
	case number >= 5 && number <= 8:
		return "DEBUG"
	case number >= 9 && number <= 12:
		return "INFO"
	case number >= 13 && number <= 16:
		return "WARN"
	case number >= 17 && number <= 20:
		return "ERROR"
	case number >= 21 && number <= 24:
		return "FATAL"
	default:
		return ""
	}
}

// PinoLevelToString converts pino/bunyan numeric levels to strings.
func PinoLevelToString(level int) string {
	switch level {
	case 10:
		return "TRACE"
	case 20:
		return "DEBUG"
	case 30:
		return "INFO"
	case 40:
		return "WARN"
	case 50:
		return "ERROR"
	case 60:
		return "FATAL"
	default:
		if level < 20 {
			return "TRACE"
		} else if level < 30 {
			return "DEBUG"
		} else if level < 40 {
			return "INFO"
		} else if level < 50 {
			return "WARN"
		} else if level < 60 {
			return "ERROR"
		}
		return "FATAL"
	}
}
