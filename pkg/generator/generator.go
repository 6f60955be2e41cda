package generator

import (
	"archive/zip"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ValerySidorin/arcxml/pkg/objstore"
	"github.com/ValerySidorin/arcxml/pkg/queue"
	"github.com/ValerySidorin/arcxml/pkg/queue/message"
	"github.com/ValerySidorin/arcxml/pkg/record"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz"

	minLevel   = 1
	maxLevel   = 100
	minObjects = 1
	maxObjects = 10
)

type Config struct {
	Dir               string `yaml:"-"`
	ArchiveCount      int    `yaml:"archive_count"`
	RecordsPerArchive int    `yaml:"records_per_archive"`
	IDLength          int    `yaml:"id_length"`
	Seed              int64  `yaml:"seed"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.IntVar(&c.ArchiveCount, flagPrefix+"archive-count", 50, `Number of archives generated per run.`)
	f.IntVar(&c.RecordsPerArchive, flagPrefix+"records-per-archive", 100, `Number of XML documents in every archive.`)
	f.IntVar(&c.IDLength, flagPrefix+"id-length", 10, `Length of generated ids and object names.`)
	f.Int64Var(&c.Seed, flagPrefix+"seed", 0, `Random seed. 0 seeds from the clock.`)
}

func (c *Config) Validate() error {
	if c.ArchiveCount < 0 {
		return errors.Errorf("negative archive count %d", c.ArchiveCount)
	}
	if c.RecordsPerArchive < 0 {
		return errors.Errorf("negative records per archive %d", c.RecordsPerArchive)
	}
	if c.IDLength < 0 {
		return errors.Errorf("negative id length %d", c.IDLength)
	}

	return nil
}

type Generator struct {
	cfg Config
	log log.Logger
	rnd *rand.Rand

	pub   queue.Publisher
	store objstore.Writer

	archivesGenerated prometheus.Counter
	recordsGenerated  prometheus.Counter
}

// NewRand returns a random source for seed, or a clock seeded one for 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return rand.New(rand.NewSource(seed))
}

func New(cfg Config, rnd *rand.Rand, pub queue.Publisher, store objstore.Writer, reg prometheus.Registerer, log log.Logger) *Generator {
	if rnd == nil {
		rnd = NewRand(cfg.Seed)
	}
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	if store == nil {
		store = objstore.NopWriter{}
	}

	return &Generator{
		cfg:   cfg,
		log:   log,
		rnd:   rnd,
		pub:   pub,
		store: store,

		archivesGenerated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "archives_generated_total",
			Help: "Number of archives written by the generator.",
		}),
		recordsGenerated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "records_generated_total",
			Help: "Number of XML documents written by the generator.",
		}),
	}
}

func ArchiveName(index int) string {
	return fmt.Sprintf("archive_%d.zip", index)
}

func entryName(i int) string {
	return fmt.Sprintf("file_%d.xml", i)
}

// RandomString draws n characters uniformly from a..z. Non-positive n gives "".
func (g *Generator) RandomString(n int) string {
	if n <= 0 {
		return ""
	}

	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rnd.Intn(len(alphabet))]
	}

	return string(b)
}

func (g *Generator) NewRecord() record.Record {
	rec := record.Record{
		ID:    g.RandomString(g.cfg.IDLength),
		Level: minLevel + g.rnd.Intn(maxLevel-minLevel+1),
	}

	cnt := minObjects + g.rnd.Intn(maxObjects-minObjects+1)
	rec.Objects = make([]string, cnt)
	for i := range rec.Objects {
		rec.Objects[i] = g.RandomString(g.cfg.IDLength)
	}

	return rec
}

// GenerateArchive writes archive_<index>.zip into the configured directory,
// replacing any previous archive with the same index. A failed write leaves
// the partial file in place.
func (g *Generator) GenerateArchive(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(g.cfg.Dir, ArchiveName(index))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "generator create archive")
	}

	if err := g.writeEntries(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "generator write %s", path)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "generator close %s", path)
	}

	g.archivesGenerated.Inc()
	_ = level.Debug(g.log).Log("msg", fmt.Sprintf("generated archive: %s", path), "entries", g.cfg.RecordsPerArchive)

	return g.announce(ctx, index, path)
}

func (g *Generator) writeEntries(f *os.File) error {
	zw := zip.NewWriter(f)

	for i := 0; i < g.cfg.RecordsPerArchive; i++ {
		b, err := record.Marshal(g.NewRecord())
		if err != nil {
			return err
		}

		w, err := zw.Create(entryName(i))
		if err != nil {
			return errors.Wrap(err, "create zip entry")
		}

		if _, err := w.Write(b); err != nil {
			return errors.Wrap(err, "write zip entry")
		}
		g.recordsGenerated.Inc()
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "close zip writer")
	}

	return nil
}

// announce mirrors the archive to the object store and publishes it on the queue.
func (g *Generator) announce(ctx context.Context, index int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "generator reopen archive")
	}
	defer f.Close()

	if err := g.store.Store(ctx, ArchiveName(index), f); err != nil {
		return errors.Wrapf(err, "generator mirror %s", path)
	}

	msg := &message.Message{Index: index, Entries: g.cfg.RecordsPerArchive}
	if err := g.pub.Pub(queue.ChannelName, msg); err != nil {
		return errors.Wrapf(err, "generator announce %s", path)
	}

	return nil
}

// GenerateAll writes archives 0..ArchiveCount-1 in order and stops at the first error.
func (g *Generator) GenerateAll(ctx context.Context) error {
	_ = level.Info(g.log).Log("msg", "generating archives", "dir", g.cfg.Dir, "count", g.cfg.ArchiveCount)

	for i := 0; i < g.cfg.ArchiveCount; i++ {
		if err := g.GenerateArchive(ctx, i); err != nil {
			return err
		}
	}

	return nil
}
