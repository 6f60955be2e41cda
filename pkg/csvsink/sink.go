package csvsink

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// Sink appends CRLF terminated rows to a CSV file. Prior content is never truncated.
type Sink struct {
	path string
	file *os.File
	w    *csv.Writer
	rows int
}

// Open opens path for appending, creating it if needed. The header is written
// only when writeHeader is set and the file is empty.
func Open(path string, header []string, writeHeader bool) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "csv sink open %s", path)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true

	s := &Sink{
		path: path,
		file: f,
		w:    w,
	}

	if writeHeader && len(header) > 0 {
		stat, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "csv sink stat %s", path)
		}

		if stat.Size() == 0 {
			if err := s.w.Write(header); err != nil {
				_ = f.Close()
				return nil, errors.Wrapf(err, "csv sink write header %s", path)
			}
		}
	}

	return s, nil
}

func (s *Sink) Write(row ...string) error {
	if err := s.w.Write(row); err != nil {
		return errors.Wrapf(err, "csv sink write %s", s.path)
	}
	s.rows++

	return nil
}

// Rows is the number of data rows written through this sink.
func (s *Sink) Rows() int {
	return s.rows
}

func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Close() error {
	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.file.Close()

	if flushErr != nil {
		return errors.Wrapf(flushErr, "csv sink flush %s", s.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "csv sink close %s", s.path)
	}

	return nil
}
