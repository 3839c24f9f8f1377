// Package diag provides sinks for the raw bytes the device prints outside
// of frames, e.g. its debug console.
package diag

import (
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
	"gopkg.in/natefinch/lumberjack.v2"

	fx "github.com/robotalks/vexlink/pkg/framework"
	"github.com/robotalks/vexlink/pkg/l0/comm"
)

// FileConfig configures the append-only diagnostic log file.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NewFileSink creates a rotated log file receiving raw bytes verbatim.
func NewFileSink(conf FileConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   conf.Path,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}
}

// DefaultMaxLine is the line length after which LineSink emits
// a partial line.
const DefaultMaxLine = 4096

// LineSink splits raw bytes into text lines.
type LineSink struct {
	Emit    func(line string)
	MaxLine int

	lock sync.Mutex
	buf  []byte
}

// NewLineSink creates a LineSink.
func NewLineSink(emit func(string)) *LineSink {
	return &LineSink{Emit: emit, MaxLine: DefaultMaxLine}
}

// GlogLines emits lines to the info log.
func GlogLines(prefix string) func(string) {
	return func(line string) {
		glog.Infof("%s%s", prefix, line)
	}
}

// Write implements io.Writer.
func (s *LineSink) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	maxLine := s.MaxLine
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	for _, b := range p {
		if b == '\n' {
			s.flush()
			continue
		}
		s.buf = append(s.buf, b)
		if len(s.buf) >= maxLine {
			s.flush()
		}
	}
	return len(p), nil
}

// Flush emits the pending partial line.
func (s *LineSink) Flush() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.flush()
}

func (s *LineSink) flush() {
	if len(s.buf) == 0 {
		return
	}
	line := strings.TrimRight(comm.DecodeText(s.buf), "\r")
	s.buf = s.buf[:0]
	if line != "" && s.Emit != nil {
		s.Emit(line)
	}
}

// MultiSink writes to all sinks. Unlike io.MultiWriter a failing sink
// doesn't stop the others.
type MultiSink []io.Writer

// Write implements io.Writer.
func (m MultiSink) Write(p []byte) (int, error) {
	var errs fx.AggregatedError
	for _, w := range m {
		if _, err := w.Write(p); err != nil {
			errs.Add(err)
		}
	}
	return len(p), errs.Aggregate()
}

// Close closes sinks implementing io.Closer.
func (m MultiSink) Close() error {
	var errs fx.AggregatedError
	for _, w := range m {
		if c, ok := w.(io.Closer); ok {
			errs.Add(c.Close())
		}
	}
	return errs.Aggregate()
}
