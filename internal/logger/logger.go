// Package logger builds the application's zerolog logger and the sink that
// mirrors it into the control panel's log list.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxUILines is how many lines the panel keeps.
const MaxUILines = 100

// New returns a logger at the given level writing JSON to file, or a
// console format to stderr when file is empty. Extra writers receive every
// event too; LevelWriters get to filter by level.
func New(level, file string, extra ...io.Writer) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = f.Close() }
		out = f
	}

	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, extra...)...)
	}

	l := zerolog.New(out).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}

// Lines is the list the UI sink appends to. fyne's binding.StringList
// satisfies it.
type Lines interface {
	Append(string) error
	Get() ([]string, error)
	Set([]string) error
}

// UISink renders events as "[15:04:05] INFO: message key=value" lines and
// keeps the last MaxUILines of them. Debug and trace events stay out of
// the panel.
type UISink struct {
	mu      sync.Mutex
	lines   Lines
	console zerolog.ConsoleWriter
	pending []byte
}

func NewUISink(lines Lines) *UISink {
	s := &UISink{lines: lines}
	s.console = zerolog.ConsoleWriter{
		Out:        writerFunc(s.appendLines),
		NoColor:    true,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(i any) string {
			s, _ := i.(string)
			if t, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
				s = t.Local().Format(time.TimeOnly)
			}
			return "[" + s + "]"
		},
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprint(i)) + ":"
		},
	}
	return s
}

func (s *UISink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *UISink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != zerolog.NoLevel && level < zerolog.InfoLevel {
		return len(p), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.console.Write(p)
}

func (s *UISink) appendLines(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := string(s.pending[:i])
		s.pending = s.pending[i+1:]
		if err := s.lines.Append(line); err != nil {
			return 0, err
		}
	}

	list, err := s.lines.Get()
	if err != nil {
		return 0, err
	}
	if len(list) > MaxUILines {
		if err := s.lines.Set(list[len(list)-MaxUILines:]); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
