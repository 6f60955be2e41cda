package objstore

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/ValerySidorin/arcxml/pkg/objstore/minio"
)

const (
	Bucket = "arcxml"
)

type Config struct {
	Store  string       `yaml:"store"`
	Bucket string       `yaml:"bucket"`
	Minio  minio.Config `yaml:"minio"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", "", `Object storage generated archives are mirrored to. Supported values: minio. Empty disables mirroring.`)
	f.StringVar(&c.Bucket, flagPrefix+"bucket", Bucket, `Bucket for mirrored archives.`)
	c.Minio.RegisterFlags(flagPrefix, f)
}

type Writer interface {
	Store(ctx context.Context, objName string, r io.Reader) error
}

func NewWriter(cfg Config) (Writer, error) {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = Bucket
	}

	switch cfg.Store {
	case "":
		return NopWriter{}, nil
	case "minio":
		return minio.NewWriter(cfg.Minio, bucket)
	}

	return nil, fmt.Errorf("invalid store for writer: %q", cfg.Store)
}

type NopWriter struct{}

func (NopWriter) Store(context.Context, string, io.Reader) error { return nil }
