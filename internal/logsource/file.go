package logsource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nxadm/tail"
	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// DefaultFileBuffer is the default channel buffer size for tailed lines.
const DefaultFileBuffer = 10_000

// FileConfig holds tunable parameters for a tailed file.
type FileConfig struct {
	BufferSize int
	// FromStart reads the existing content before following new writes.
	FromStart bool
	// Poll uses stat polling instead of inotify.
	Poll   bool
	Logger *zap.Logger
}

// FileSource follows a log file, surviving truncation and rotation.
type FileSource struct {
	path     string
	t        *tail.Tail
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewFileSource starts tailing path. The file does not have to exist yet.
func NewFileSource(ctx context.Context, path string, conf ...FileConfig) (*FileSource, error) {
	cfg := FileConfig{BufferSize: DefaultFileBuffer}
	if len(conf) > 0 {
		cfg = conf[0]
		if cfg.BufferSize <= 0 {
			cfg.BufferSize = DefaultFileBuffer
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	whence := io.SeekEnd
	if cfg.FromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      cfg.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("logsource: tail %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:   path,
		t:      t,
		ch:     make(chan model.IngestEnvelope, cfg.BufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger.With(zap.String("source", "file"), zap.String("file", path)),
	}
	go s.read(ctx)
	return s, nil
}

func (s *FileSource) read(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)
	s.logger.Info("tailing file")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-s.t.Lines:
			if !ok {
				s.logger.Warn("tail channel closed")
				return
			}
			if line.Err != nil {
				s.logger.Error("error reading line", zap.Error(line.Err))
				continue
			}
			text := strings.TrimRight(line.Text, "\r")
			if text == "" {
				continue
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: text}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Offset reports the read position within the current file.
func (s *FileSource) Offset() (int64, error) {
	return s.t.Tell()
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Name() string                       { return "file:" + s.path }

// Stop ends the tail and waits for the reader goroutine to exit.
func (s *FileSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if err := s.t.Stop(); err != nil {
			s.logger.Debug("tail stop", zap.Error(err))
		}
		<-s.done
		s.t.Cleanup()
	})
}
