package arcxml

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValerySidorin/arcxml/pkg/generator"
	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func testConfig(t *testing.T) Config {
	cfg := Config{}
	flagext.DefaultValues(&cfg)

	out := t.TempDir()
	cfg.Dir = t.TempDir()
	cfg.Generator.Seed = 1
	cfg.Processor.IDLevelCSV = filepath.Join(out, "id_level.csv")
	cfg.Processor.IDObjectCSV = filepath.Join(out, "id_object.csv")

	return cfg
}

func countRows(t *testing.T, path string) int {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return len(rows)
}

func zipFiles(t *testing.T, dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	require.NoError(t, err)
	return matches
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	flagext.DefaultValues(&cfg)

	assert.Equal(t, All, cfg.Target)
	assert.Equal(t, "./archives", cfg.Dir)
	assert.Empty(t, cfg.PushGateway)
	assert.Equal(t, 4, cfg.PushRetryMax)
	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, 50, cfg.Generator.ArchiveCount)
	assert.Equal(t, 100, cfg.Generator.RecordsPerArchive)
	assert.Equal(t, "id_level.csv", cfg.Processor.IDLevelCSV)
	assert.Equal(t, "id_object.csv", cfg.Processor.IDObjectCSV)
	assert.False(t, cfg.Processor.WriteHeader)
	assert.Empty(t, cfg.ObjStore.Store)
	assert.Empty(t, cfg.Queue.Type)
	assert.Empty(t, cfg.Journal.Store)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	flagext.DefaultValues(&cfg)

	cfg.Target = "downloader"
	assert.Error(t, cfg.Validate())

	cfg.Target = Processor
	cfg.Dir = ""
	assert.Error(t, cfg.Validate())

	cfg.Dir = t.TempDir()
	cfg.Generator.IDLength = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcxml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target: processor
dir: /data/archives
log:
  log_level: debug
generator:
  archive_count: 3
  seed: 99
processor:
  id_level_csv: /data/out/levels.csv
  write_header: true
journal:
  store: memory
`), 0o644))

	cfg := Config{}
	flagext.DefaultValues(&cfg)
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, Processor, cfg.Target)
	assert.Equal(t, "/data/archives", cfg.Dir)
	assert.Equal(t, "debug", cfg.Log.LogLevel.String())
	assert.Equal(t, 3, cfg.Generator.ArchiveCount)
	assert.Equal(t, 100, cfg.Generator.RecordsPerArchive)
	assert.Equal(t, int64(99), cfg.Generator.Seed)
	assert.Equal(t, "/data/out/levels.csv", cfg.Processor.IDLevelCSV)
	assert.Equal(t, "id_object.csv", cfg.Processor.IDObjectCSV)
	assert.True(t, cfg.Processor.WriteHeader)
	assert.Equal(t, "memory", cfg.Journal.Store)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcxml.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archives: 10\n"), 0o644))

	cfg := Config{}
	assert.Error(t, LoadConfig(path, &cfg))
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
}

func TestRunFullPipeline(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	reg := prometheus.NewPedanticRegistry()

	a, err := New(ctx, cfg, reg, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))

	assert.Len(t, zipFiles(t, cfg.Dir), 50)
	assert.Equal(t, 5000, countRows(t, cfg.Processor.IDLevelCSV))
	objects := countRows(t, cfg.Processor.IDObjectCSV)
	assert.GreaterOrEqual(t, objects, 5000)
	assert.LessOrEqual(t, objects, 50000)

	count, err := testutil.GatherAndCount(reg, "arcxml_archives_generated_total", "arcxml_archives_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A second run regenerates the same names and appends again.
	require.NoError(t, a.Run(ctx))
	assert.Len(t, zipFiles(t, cfg.Dir), 50)
	assert.Equal(t, 10000, countRows(t, cfg.Processor.IDLevelCSV))
	assert.Greater(t, countRows(t, cfg.Processor.IDObjectCSV), objects)
}

func TestRunProcessesLeftoverArchives(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.ArchiveCount = 2
	ctx := context.Background()

	gcfg := cfg.Generator
	gcfg.Dir = cfg.Dir
	leftover := generator.New(gcfg, nil, nil, nil, nil, log.NewNopLogger())
	require.NoError(t, leftover.GenerateArchive(ctx, 17))

	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))

	assert.Len(t, zipFiles(t, cfg.Dir), 3)
	assert.Equal(t, 300, countRows(t, cfg.Processor.IDLevelCSV))
}

func TestRunTargets(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Target = Generator
	cfg.Generator.ArchiveCount = 2
	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))
	assert.Len(t, zipFiles(t, cfg.Dir), 2)
	assert.NoFileExists(t, cfg.Processor.IDLevelCSV)

	cfg.Target = Processor
	a, err = New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))
	assert.Len(t, zipFiles(t, cfg.Dir), 2)
	assert.Equal(t, 200, countRows(t, cfg.Processor.IDLevelCSV))
}

func TestNewInvalidTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Target = "everything"

	_, err := New(context.Background(), cfg, nil, log.NewNopLogger())
	assert.Error(t, err)
}

func TestServiceTerminates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.ArchiveCount = 1
	ctx := context.Background()

	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, a.StartAsync(ctx))
	require.NoError(t, a.AwaitTerminated(ctx))
	assert.NoError(t, a.FailureCase())
	assert.Equal(t, 100, countRows(t, cfg.Processor.IDLevelCSV))
}

func TestServiceFailsOnMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "missing")
	ctx := context.Background()

	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, a.StartAsync(ctx))
	assert.Error(t, a.AwaitTerminated(ctx))
	assert.ErrorIs(t, a.FailureCase(), os.ErrNotExist)
}

func TestRunPushesMetricsWithRetry(t *testing.T) {
	requests := atomic.NewInt32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Inc() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/metrics/job/"+jobName, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Generator.ArchiveCount = 1
	cfg.PushGateway = srv.URL
	cfg.PushRetryMax = 2
	ctx := context.Background()

	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, int32(2), requests.Load())
}

func TestRunPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Target = Processor
	cfg.PushGateway = srv.URL
	cfg.PushRetryMax = 0
	ctx := context.Background()

	a, err := New(ctx, cfg, nil, log.NewNopLogger())
	require.NoError(t, err)
	assert.Error(t, a.Run(ctx))
}
