package objstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterDisabled(t *testing.T) {
	w, err := NewWriter(Config{})
	require.NoError(t, err)
	assert.IsType(t, NopWriter{}, w)
	assert.NoError(t, w.Store(context.Background(), "archive_0.zip", strings.NewReader("zip")))
}

func TestNewWriterInvalidStore(t *testing.T) {
	_, err := NewWriter(Config{Store: "s3"})
	assert.Error(t, err)
}
