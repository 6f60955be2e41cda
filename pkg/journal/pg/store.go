package pg

import (
	"context"
	"flag"

	"github.com/ValerySidorin/arcxml/pkg/journal/record"
	"github.com/go-kit/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

type Config struct {
	Conn string `yaml:"conn"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Conn, flagPrefix+"pg.conn", "", `Postgres connection string`)
}

// conn is the subset of *pgx.Conn the store uses.
type conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

type Store struct {
	cfg  Config
	log  log.Logger
	conn conn
}

func NewStore(ctx context.Context, cfg Config, log log.Logger) (*Store, error) {
	c, err := pgx.Connect(ctx, cfg.Conn)
	if err != nil {
		return nil, errors.Wrap(err, "pg journal store init conn")
	}

	return newStore(ctx, cfg, c, log)
}

// newStore creates the journal table. The connection is closed if that fails.
func newStore(ctx context.Context, cfg Config, conn conn, log log.Logger) (*Store, error) {
	q := `create table if not exists public.archive_journal
	(id bigserial primary key, archive text not null, status text not null,
	level_rows integer not null default 0, object_rows integer not null default 0,
	started_at timestamptz not null, finished_at timestamptz);`
	if _, err := conn.Exec(ctx, q); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Wrap(err, "pg journal store init table")
	}

	return &Store{
		cfg:  cfg,
		log:  log,
		conn: conn,
	}, nil
}

func (s *Store) InsertRecord(ctx context.Context, rec *record.Record) error {
	q := `insert into archive_journal(archive, status, level_rows, object_rows, started_at)
	values($1, $2, $3, $4, $5) returning id;`

	if err := s.conn.QueryRow(ctx, q, rec.Archive, rec.Status, rec.LevelRows, rec.ObjectRows, rec.StartedAt).Scan(&rec.ID); err != nil {
		return errors.Wrap(err, "pg journal store insert record")
	}

	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, rec *record.Record) error {
	q := `update archive_journal
	set status = $2,
	level_rows = $3,
	object_rows = $4,
	finished_at = $5
	where id = $1;`

	if _, err := s.conn.Exec(ctx, q, rec.ID, rec.Status, rec.LevelRows, rec.ObjectRows, rec.FinishedAt); err != nil {
		return errors.Wrap(err, "pg journal store update record")
	}

	return nil
}

func (s *Store) GetAllRecords(ctx context.Context) ([]*record.Record, error) {
	q := `select id, archive, status, level_rows, object_rows, started_at, coalesce(finished_at, started_at)
	from archive_journal order by id;`

	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "pg journal store query records")
	}
	defer rows.Close()

	recs := make([]*record.Record, 0)
	for rows.Next() {
		rec := record.Record{}
		if err := scanRecordFromRows(rows, &rec); err != nil {
			return nil, errors.Wrap(err, "pg journal store scan records")
		}
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pg journal store read records")
	}

	return recs, nil
}

func (s *Store) Dispose(ctx context.Context) error {
	if err := s.conn.Close(ctx); err != nil {
		return errors.Wrap(err, "pg journal store close connection")
	}

	return nil
}

func scanRecordFromRows(rows pgx.Rows, rec *record.Record) error {
	return rows.Scan(&rec.ID, &rec.Archive, &rec.Status, &rec.LevelRows, &rec.ObjectRows, &rec.StartedAt, &rec.FinishedAt)
}
