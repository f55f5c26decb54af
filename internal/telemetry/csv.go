package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CSVSink writes "elapsed,value" rows with two decimals under a
// Timestamp,<unit> header. The file is truncated when the sink is created.
type CSVSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSVSink creates (or truncates) path and writes the header.
func NewCSVSink(path, unit string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrLogIO, "open %s: %v", path, err)
	}
	s := &CSVSink{path: path, f: f, w: csv.NewWriter(f)}
	if err := s.write([]string{"Timestamp", unit}); err != nil {
		f.Close()
		return nil, err
	}
	logrus.WithField("path", path).Info("telemetry CSV logging started")
	return s, nil
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// Append implements Sink.
func (s *CSVSink) Append(sample Sample) error {
	return s.write([]string{
		fmt.Sprintf("%.2f", sample.Elapsed),
		fmt.Sprintf("%.2f", sample.Value),
	})
}

func (s *CSVSink) write(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return pkgerrors.Wrapf(ErrLogIO, "%s is closed", s.path)
	}
	if err := s.w.Write(row); err != nil {
		return pkgerrors.Wrapf(ErrLogIO, "write %s: %v", s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return pkgerrors.Wrapf(ErrLogIO, "flush %s: %v", s.path, err)
	}
	return nil
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	s.w.Flush()
	err := s.f.Close()
	s.f = nil
	return err
}
