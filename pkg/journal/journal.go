package journal

import (
	"context"
	"flag"
	"time"

	"github.com/ValerySidorin/arcxml/pkg/journal/memory"
	"github.com/ValerySidorin/arcxml/pkg/journal/pg"
	"github.com/ValerySidorin/arcxml/pkg/journal/record"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

type Config struct {
	Store string    `yaml:"store"`
	Pg    pg.Config `yaml:"pg"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", "", `Store for the processed archives journal. Supported values: pg, memory. Empty disables the journal.`)
	c.Pg.RegisterFlags(flagPrefix, f)
}

type Store interface {
	InsertRecord(ctx context.Context, rec *record.Record) error
	UpdateRecord(ctx context.Context, rec *record.Record) error
	GetAllRecords(ctx context.Context) ([]*record.Record, error)
	Dispose(ctx context.Context) error
}

// Journal keeps an audit trail of processed archives. It never decides whether
// an archive gets processed.
type Journal struct {
	store Store
	log   log.Logger
}

func New(ctx context.Context, cfg Config, log log.Logger) (*Journal, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Store {
	case "":
	case "memory":
		store = memory.NewStore()
	case "pg":
		store, err = pg.NewStore(ctx, cfg.Pg, log)
		if err != nil {
			return nil, errors.Wrap(err, "journal init store")
		}
	default:
		return nil, errors.New("invalid journal store in config")
	}

	return &Journal{
		store: store,
		log:   log,
	}, nil
}

func (j *Journal) Enabled() bool {
	return j != nil && j.store != nil
}

func (j *Journal) Begin(ctx context.Context, archive string) (*record.Record, error) {
	rec := record.New(archive)
	if !j.Enabled() {
		return rec, nil
	}

	if err := j.store.InsertRecord(ctx, rec); err != nil {
		return nil, errors.Wrapf(err, "journal begin %s", archive)
	}

	return rec, nil
}

func (j *Journal) Complete(ctx context.Context, rec *record.Record, levelRows, objectRows int) error {
	rec.LevelRows = levelRows
	rec.ObjectRows = objectRows
	return j.finish(ctx, rec, record.COMPLETED)
}

func (j *Journal) Fail(ctx context.Context, rec *record.Record, levelRows, objectRows int) error {
	rec.LevelRows = levelRows
	rec.ObjectRows = objectRows
	return j.finish(ctx, rec, record.FAILED)
}

func (j *Journal) finish(ctx context.Context, rec *record.Record, status string) error {
	rec.Status = status
	rec.FinishedAt = time.Now().UTC()
	if !j.Enabled() {
		return nil
	}

	if err := j.store.UpdateRecord(ctx, rec); err != nil {
		return errors.Wrapf(err, "journal finish %s", rec.Archive)
	}

	return nil
}

func (j *Journal) GetAllRecords(ctx context.Context) ([]*record.Record, error) {
	if !j.Enabled() {
		return nil, nil
	}

	return j.store.GetAllRecords(ctx)
}

func (j *Journal) Dispose(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}

	return j.store.Dispose(ctx)
}
