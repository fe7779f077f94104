package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/debugconsole/internal/logparse"
	"github.com/tinytelemetry/debugconsole/internal/model"
)

var (
	messageKeys = []string{"msg", "message", "body", "text", "log", "condition"}
	stackKeys   = []string{"stack", "stackTrace", "stacktrace", "stack_trace", "exception.stacktrace", "error.stack", "callstack"}
	levelKeys   = []string{"level", "severity", "severityText", "lvl", "logType", "type"}
	timeKeys    = []string{"time", "timestamp", "ts", "@timestamp"}
)

// ParseJSONLogEvents parses one JSON document into one or more log events.
// It supports OTEL envelopes, the OTEL log-record shape, and flat JSON logs
// such as pino, winston, zap and bunyan output. It returns nil when line is
// not a JSON object.
func ParseJSONLogEvents(line string) []model.LogEvent {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}

	if events, ok := parseOTELJSONLogEvents(raw); ok {
		return events
	}
	return []model.LogEvent{parseFlatJSONLogEvent(raw, line)}
}

// ParseJSONLogEvent parses a JSON log line into a single event.
// When an OTEL envelope contains multiple log records, the first is returned.
func ParseJSONLogEvent(line string) (model.LogEvent, bool) {
	events := ParseJSONLogEvents(line)
	if len(events) == 0 {
		return model.LogEvent{}, false
	}
	return events[0], true
}

// CreateFallbackEvent builds an event from a plain-text line, guessing its
// kind from severity words in the text.
func CreateFallbackEvent(line string) model.LogEvent {
	message := strings.TrimRight(line, "\r\n")
	return model.LogEvent{
		Timestamp: time.Now(),
		Message:   message,
		Kind:      logparse.ExtractKindFromText(message),
	}
}

func parseFlatJSONLogEvent(raw map[string]interface{}, line string) model.LogEvent {
	message := ExtractStringField(raw, messageKeys...)
	stack := extractNestedStack(raw)
	if message == "" {
		message = line
		for _, key := range []string{"err", "error", "exception"} {
			if errMsg := extractNestedString(raw, key, "message"); errMsg != "" {
				message = errMsg
				break
			}
		}
	}
	message, stack = splitMessage(message, stack)

	var severity string
	switch v := firstValue(raw, levelKeys...).(type) {
	case float64:
		severity = logparse.PinoLevelToString(int(v))
	case nil:
		severity = logparse.ExtractSeverityFromText(message)
	default:
		severity = stringifyJSONValue(v)
	}
	if severity == "" {
		severity = "INFO"
	}
	kind := logparse.ParseKind(severity)

	ts := time.Now()
	if parsed, ok := parseTimestamp(firstValue(raw, timeKeys...)); ok {
		ts = parsed
	}

	return model.LogEvent{
		Timestamp:  ts,
		Message:    message,
		StackTrace: stack,
		Kind:       kind,
	}
}

func parseOTELJSONLogEvents(raw map[string]interface{}) ([]model.LogEvent, bool) {
	if resourceLogs, ok := raw["resourceLogs"]; ok {
		return parseOTELResourceLogs(resourceLogs), true
	}

	if scopeLogs, ok := raw["scopeLogs"]; ok {
		return parseOTELScopeLogs(scopeLogs), true
	}

	if logRecords, ok := raw["logRecords"]; ok {
		return parseOTELLogRecords(logRecords), true
	}

	if isOTELLogRecord(raw) {
		return []model.LogEvent{parseOTELLogRecord(raw)}, true
	}

	return nil, false
}

func parseOTELResourceLogs(value interface{}) []model.LogEvent {
	resourceLogs, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var events []model.LogEvent
	for _, item := range resourceLogs {
		resourceLog, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		scopeLogsVal := resourceLog["scopeLogs"]
		if scopeLogsVal == nil {
			// Backward compatibility with older OTEL naming.
			scopeLogsVal = resourceLog["instrumentationLibraryLogs"]
		}
		events = append(events, parseOTELScopeLogs(scopeLogsVal)...)
	}
	return events
}

func parseOTELScopeLogs(value interface{}) []model.LogEvent {
	scopeLogs, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var events []model.LogEvent
	for _, item := range scopeLogs {
		scopeLog, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		events = append(events, parseOTELLogRecords(scopeLog["logRecords"])...)
	}
	return events
}

func parseOTELLogRecords(value interface{}) []model.LogEvent {
	logRecords, ok := value.([]interface{})
	if !ok {
		return nil
	}

	events := make([]model.LogEvent, 0, len(logRecords))
	for _, item := range logRecords {
		logRecord, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		events = append(events, parseOTELLogRecord(logRecord))
	}
	return events
}

func parseOTELLogRecord(raw map[string]interface{}) model.LogEvent {
	attributes := parseOTELAttributes(raw["attributes"])

	message := extractOTELBody(raw["body"])
	if message == "" {
		message = joinNonEmpty(": ", attributes["exception.type"], attributes["exception.message"])
	}
	message, stack := splitMessage(message, attributes["exception.stacktrace"])

	severity := ExtractStringField(raw, "severityText")
	if severity == "" {
		severity = logparse.SeverityFromOTELNumber(parseOTELSeverityNumber(raw["severityNumber"]))
	}
	kind := model.KindLog
	switch {
	case severity != "":
		kind = logparse.ParseKind(severity)
	case attributes["exception.type"] != "":
		kind = model.KindException
	}

	ts := extractOTELTimestamp(raw)
	if ts.IsZero() {
		ts = time.Now()
	}

	return model.LogEvent{
		Timestamp:  ts,
		Message:    message,
		StackTrace: stack,
		Kind:       kind,
	}
}

// splitMessage moves everything after the first line of a multi-line message
// into the stack trace when no explicit trace was given.
func splitMessage(message, stack string) (string, string) {
	message = strings.TrimRight(message, "\r\n")
	first, rest, found := strings.Cut(message, "\n")
	if !found {
		return message, stack
	}
	if stack == "" {
		return strings.TrimRight(first, "\r"), rest
	}
	return sanitizeLogMessage(message), stack
}

func extractNestedStack(raw map[string]interface{}) string {
	if s := ExtractStringField(raw, stackKeys...); s != "" {
		return s
	}
	for _, key := range []string{"err", "error", "exception"} {
		if s := extractNestedString(raw, key, "stack"); s != "" {
			return s
		}
		if s := extractNestedString(raw, key, "stacktrace"); s != "" {
			return s
		}
	}
	return ""
}

func extractNestedString(raw map[string]interface{}, outer, inner string) string {
	nested, ok := raw[outer].(map[string]interface{})
	if !ok {
		return ""
	}
	return ExtractStringField(nested, inner)
}

func parseOTELAttributes(value interface{}) map[string]string {
	out := map[string]string{}
	attributes, ok := value.([]interface{})
	if !ok {
		return out
	}

	for _, item := range attributes {
		attr, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key := ExtractStringField(attr, "key")
		if key == "" {
			continue
		}
		val := extractOTELAnyValue(attr["value"])
		if val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

func extractOTELBody(value interface{}) string {
	switch body := value.(type) {
	case string:
		return body
	case map[string]interface{}:
		return extractOTELAnyValue(body)
	default:
		return stringifyJSONValue(body)
	}
}

func extractOTELAnyValue(value interface{}) string {
	anyValue, ok := value.(map[string]interface{})
	if !ok {
		return stringifyJSONValue(value)
	}

	for _, key := range []string{"stringValue", "boolValue", "intValue", "doubleValue", "bytesValue"} {
		if val, ok := anyValue[key]; ok {
			return stringifyJSONValue(val)
		}
	}

	if arrayValue, ok := anyValue["arrayValue"].(map[string]interface{}); ok {
		if vals, ok := arrayValue["values"].([]interface{}); ok {
			parts := make([]string, 0, len(vals))
			for _, v := range vals {
				part := extractOTELAnyValue(v)
				if part == "" {
					continue
				}
				parts = append(parts, part)
			}
			return strings.Join(parts, ",")
		}
	}

	if kvListValue, ok := anyValue["kvlistValue"].(map[string]interface{}); ok {
		return stringifyJSONValue(kvListValue["values"])
	}

	return stringifyJSONValue(anyValue)
}

func extractOTELTimestamp(raw map[string]interface{}) time.Time {
	for _, key := range []string{"timeUnixNano", "observedTimeUnixNano"} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if ts, parsed := parseTimeUnixNano(value); parsed {
			return ts
		}
	}
	return time.Time{}
}

func parseTimeUnixNano(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(0, n), true
		}
	case float64:
		return time.Unix(0, int64(v)), true
	}
	return time.Time{}, false
}

// parseTimestamp accepts RFC 3339 strings and unix epoch numbers in seconds
// or milliseconds.
func parseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.000", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return ts, true
			}
		}
	case float64:
		if v > 1e12 {
			return time.UnixMilli(int64(v)), true
		}
		if v > 0 {
			sec := int64(v)
			return time.Unix(sec, int64((v-float64(sec))*1e9)), true
		}
	}
	return time.Time{}, false
}

func parseOTELSeverityNumber(value interface{}) int {
	switch v := value.(type) {
	case float64:
		if v <= 0 {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

func isOTELLogRecord(raw map[string]interface{}) bool {
	for _, key := range []string{
		"timeUnixNano",
		"observedTimeUnixNano",
		"severityNumber",
		"severityText",
		"traceId",
		"spanId",
		"droppedAttributesCount",
	} {
		if _, ok := raw[key]; ok {
			return true
		}
	}

	_, hasBody := raw["body"]
	_, hasAttrs := raw["attributes"]
	return hasBody && hasAttrs
}

func firstValue(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func stringifyJSONValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(value)
}

func sanitizeLogMessage(message string) string {
	clean := strings.ReplaceAll(message, "\t", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", " ")
	return clean
}

// ExtractStringField returns the first non-empty string value found among the given keys.
func ExtractStringField(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if str := stringifyJSONValue(v); str != "" {
				return str
			}
		}
	}
	return ""
}
