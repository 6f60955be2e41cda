package io

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// TryGetSize reports the number of bytes left in r without consuming it.
func TryGetSize(r io.Reader) (int64, error) {
	switch f := r.(type) {
	case *bytes.Reader:
		return int64(f.Len()), nil
	case *bytes.Buffer:
		return int64(f.Len()), nil
	case *strings.Reader:
		return int64(f.Len()), nil
	case *os.File:
		stat, err := f.Stat()
		if err != nil {
			return 0, errors.Wrap(err, "stat file")
		}

		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, errors.Wrap(err, "seek file")
		}

		return stat.Size() - pos, nil
	}

	return 0, errors.Errorf("unsupported type of io.Reader: %T", r)
}
