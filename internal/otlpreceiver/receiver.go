// Package otlpreceiver accepts OTLP/gRPC log exports and forwards every log
// record to the console as a LogEvent.
package otlpreceiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/debugconsole/internal/logparse"
	"github.com/tinytelemetry/debugconsole/internal/model"
)

const (
	// DefaultAddr is the standard OTLP/gRPC port on loopback.
	DefaultAddr = "127.0.0.1:4317"

	// DefaultMaxRecvMsgSize bounds a single export request.
	DefaultMaxRecvMsgSize = 16 * 1024 * 1024

	sourceName = "otlp"
)

// Config holds tunable parameters for the receiver.
type Config struct {
	Addr           string
	MaxRecvMsgSize int
	Logger         *zap.Logger
}

// Receiver implements the OTLP LogsService.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	sink   model.EventSink
	addr   string
	server *grpc.Server
	logger *zap.Logger
}

// New creates a receiver that submits converted records to sink.
func New(sink model.EventSink, cfg Config) *Receiver {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	maxRecv := cfg.MaxRecvMsgSize
	if maxRecv <= 0 {
		maxRecv = DefaultMaxRecvMsgSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Receiver{
		sink:   sink,
		addr:   addr,
		logger: logger.With(zap.String("component", "otlpreceiver")),
		server: grpc.NewServer(grpc.MaxRecvMsgSize(maxRecv)),
	}
	collogspb.RegisterLogsServiceServer(r.server, r)
	return r
}

// Addr returns the configured listen address.
func (r *Receiver) Addr() string { return r.addr }

// Serve accepts connections on lis until Stop is called.
func (r *Receiver) Serve(lis net.Listener) error {
	r.logger.Info("otlp receiver listening", zap.String("addr", lis.Addr().String()))
	if err := r.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("otlpreceiver: serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (r *Receiver) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("otlpreceiver: listen %s: %w", r.addr, err)
	}
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-stopped:
		}
	}()
	return r.Serve(lis)
}

// Stop drains in-flight exports and closes the listener.
func (r *Receiver) Stop() {
	r.server.GracefulStop()
}

// Export converts every log record in req. Records without a usable body are
// rejected, as are records the console could not queue.
func (r *Receiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	var accepted, rejected int64
	var reasons []string
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				ev, ok := ConvertRecord(lr)
				if !ok {
					rejected++
					reasons = appendReason(reasons, "empty log body")
					continue
				}
				if r.sink != nil && !r.sink.Submit(ev) {
					rejected++
					reasons = appendReason(reasons, "console queue full")
					continue
				}
				accepted++
			}
		}
	}

	r.logger.Debug("otlp export",
		zap.Int("bytes", proto.Size(req)),
		zap.Int64("accepted", accepted),
		zap.Int64("rejected", rejected))

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       strings.Join(reasons, "; "),
		}
	}
	return resp, nil
}

func appendReason(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}

// ConvertRecord maps an OTLP log record to a LogEvent. The stack trace comes
// from the exception.stacktrace attribute. It returns false when the record
// has neither a body nor exception details.
func ConvertRecord(lr *logspb.LogRecord) (model.LogEvent, bool) {
	attrs := make(map[string]string, len(lr.GetAttributes()))
	for _, kv := range lr.GetAttributes() {
		if v := anyValueString(kv.GetValue()); v != "" {
			attrs[kv.GetKey()] = v
		}
	}

	message := anyValueString(lr.GetBody())
	if message == "" {
		switch {
		case attrs["exception.type"] != "" && attrs["exception.message"] != "":
			message = attrs["exception.type"] + ": " + attrs["exception.message"]
		case attrs["exception.message"] != "":
			message = attrs["exception.message"]
		default:
			message = attrs["exception.type"]
		}
	}
	if message == "" {
		return model.LogEvent{}, false
	}
	stack := attrs["exception.stacktrace"]
	if first, rest, found := strings.Cut(message, "\n"); found && stack == "" {
		message, stack = first, rest
	}

	kind := model.KindLog
	switch {
	case lr.GetSeverityText() != "":
		kind = logparse.ParseKind(lr.GetSeverityText())
	case lr.GetSeverityNumber() != logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED:
		kind = logparse.KindFromSeverity(logparse.SeverityFromOTELNumber(int(lr.GetSeverityNumber())))
	case attrs["exception.type"] != "":
		kind = model.KindException
	}

	ts := time.Now()
	if n := lr.GetTimeUnixNano(); n > 0 {
		ts = time.Unix(0, int64(n))
	} else if n := lr.GetObservedTimeUnixNano(); n > 0 {
		ts = time.Unix(0, int64(n))
	}

	return model.LogEvent{
		Timestamp:  ts,
		Message:    message,
		StackTrace: stack,
		Kind:       kind,
		Source:     sourceName,
	}, true
}

func anyValueString(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
	case *commonpb.AnyValue_BytesValue:
		return string(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		parts := make([]string, 0, len(val.ArrayValue.GetValues()))
		for _, item := range val.ArrayValue.GetValues() {
			if s := anyValueString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case *commonpb.AnyValue_KvlistValue:
		parts := make([]string, 0, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			parts = append(parts, kv.GetKey()+"="+anyValueString(kv.GetValue()))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
