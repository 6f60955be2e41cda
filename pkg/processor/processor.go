package processor

import (
	"archive/zip"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValerySidorin/arcxml/pkg/csvsink"
	"github.com/ValerySidorin/arcxml/pkg/journal"
	"github.com/ValerySidorin/arcxml/pkg/record"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
)

const (
	archiveExt = ".zip"

	tableIDLevel  = "id_level"
	tableIDObject = "id_object"
)

var (
	idLevelHeader  = []string{"id", "level"}
	idObjectHeader = []string{"id", "object_name"}
)

type Config struct {
	Dir         string `yaml:"-"`
	IDLevelCSV  string `yaml:"id_level_csv"`
	IDObjectCSV string `yaml:"id_object_csv"`
	WriteHeader bool   `yaml:"write_header"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.IDLevelCSV, flagPrefix+"id-level-csv", "id_level.csv", `CSV file id,level rows are appended to.`)
	f.StringVar(&c.IDObjectCSV, flagPrefix+"id-object-csv", "id_object.csv", `CSV file id,object_name rows are appended to.`)
	f.BoolVar(&c.WriteHeader, flagPrefix+"write-header", false, `Write a header row into newly created CSV files.`)
}

type Processor struct {
	cfg Config
	log log.Logger

	journal *journal.Journal

	archivesProcessed prometheus.Counter
	rowsWritten       *prometheus.CounterVec
}

func New(cfg Config, j *journal.Journal, reg prometheus.Registerer, log log.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		log:     log,
		journal: j,

		archivesProcessed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "archives_processed_total",
			Help: "Number of archives fully appended to the CSV files.",
		}),
		rowsWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "csv_rows_written_total",
			Help: "Number of rows appended per CSV table.",
		}, []string{"table"}),
	}
}

// ProcessArchive appends the rows of a single archive from the configured directory.
func (p *Processor) ProcessArchive(ctx context.Context, filename string) error {
	s, err := p.openSinks()
	if err != nil {
		return err
	}

	err = p.processArchive(ctx, s, filename)
	if cErr := s.close(); err == nil {
		err = cErr
	}

	return err
}

// ProcessDirectory appends the rows of every *.zip archive in the configured
// directory. The first failing archive aborts the run.
func (p *Processor) ProcessDirectory(ctx context.Context) error {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return errors.Wrap(err, "processor read dir")
	}

	names := lo.FilterMap(entries, func(item os.DirEntry, index int) (string, bool) {
		return item.Name(), !item.IsDir() && strings.HasSuffix(item.Name(), archiveExt)
	})
	_ = level.Info(p.log).Log("msg", "processing archives", "dir", p.cfg.Dir, "count", len(names))
	if len(names) == 0 {
		return nil
	}

	s, err := p.openSinks()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err = p.processArchive(ctx, s, name); err != nil {
			break
		}
	}

	if cErr := s.close(); err == nil {
		err = cErr
	}

	return err
}

func (p *Processor) processArchive(ctx context.Context, s *sinks, filename string) error {
	rec, err := p.journal.Begin(ctx, filename)
	if err != nil {
		return err
	}

	levelsBefore, objectsBefore := s.levels.Rows(), s.objects.Rows()
	err = p.readArchive(ctx, s, filename)
	levelRows, objectRows := s.levels.Rows()-levelsBefore, s.objects.Rows()-objectsBefore

	p.rowsWritten.WithLabelValues(tableIDLevel).Add(float64(levelRows))
	p.rowsWritten.WithLabelValues(tableIDObject).Add(float64(objectRows))

	if err != nil {
		if jErr := p.journal.Fail(ctx, rec, levelRows, objectRows); jErr != nil {
			_ = level.Error(p.log).Log("msg", jErr.Error())
		}
		return err
	}

	if err := p.journal.Complete(ctx, rec, levelRows, objectRows); err != nil {
		return err
	}

	p.archivesProcessed.Inc()
	_ = level.Debug(p.log).Log("msg", fmt.Sprintf("processed archive: %s", filename), "id_level_rows", levelRows, "id_object_rows", objectRows)

	return nil
}

func (p *Processor) readArchive(ctx context.Context, s *sinks, filename string) error {
	zr, err := zip.OpenReader(filepath.Join(p.cfg.Dir, filename))
	if err != nil {
		return errors.Wrapf(err, "processor open archive %s", filename)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			continue
		}

		b, err := readEntry(f)
		if err != nil {
			return errors.Wrapf(err, "processor read %s:%s", filename, f.Name)
		}

		fields, names, err := record.Parse(b)
		if err != nil {
			return errors.Wrapf(err, "processor parse %s:%s", filename, f.Name)
		}

		if err := s.levels.Write(fields.ID, fields.Level); err != nil {
			return err
		}

		for _, name := range names {
			if err := s.objects.Write(fields.ID, name); err != nil {
				return err
			}
		}
	}

	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

type sinks struct {
	levels  *csvsink.Sink
	objects *csvsink.Sink
}

func (p *Processor) openSinks() (*sinks, error) {
	levels, err := csvsink.Open(p.cfg.IDLevelCSV, idLevelHeader, p.cfg.WriteHeader)
	if err != nil {
		return nil, errors.Wrap(err, "processor open id/level csv")
	}

	objects, err := csvsink.Open(p.cfg.IDObjectCSV, idObjectHeader, p.cfg.WriteHeader)
	if err != nil {
		_ = levels.Close()
		return nil, errors.Wrap(err, "processor open id/object csv")
	}

	return &sinks{levels: levels, objects: objects}, nil
}

func (s *sinks) close() error {
	lErr := s.levels.Close()
	oErr := s.objects.Close()

	if lErr != nil {
		return lErr
	}

	return oErr
}
