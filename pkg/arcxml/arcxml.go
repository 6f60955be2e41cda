package arcxml

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/ValerySidorin/arcxml/pkg/generator"
	"github.com/ValerySidorin/arcxml/pkg/journal"
	"github.com/ValerySidorin/arcxml/pkg/objstore"
	"github.com/ValerySidorin/arcxml/pkg/processor"
	"github.com/ValerySidorin/arcxml/pkg/queue"
	util_log "github.com/ValerySidorin/arcxml/pkg/util/log"
	gklog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/atomic"
)

const (
	Generator = "generator"
	Processor = "processor"
	All       = "all"

	jobName = "arcxml"
)

type Config struct {
	Target      string `yaml:"target"`
	Dir         string `yaml:"dir"`
	PushGateway string `yaml:"push_gateway"`

	PushRetryMax int           `yaml:"push_retry_max"`
	PushTimeout  time.Duration `yaml:"push_timeout"`

	Log       util_log.Config  `yaml:"log"`
	Generator generator.Config `yaml:"generator"`
	Processor processor.Config `yaml:"processor"`
	ObjStore  objstore.Config  `yaml:"obj_store"`
	Queue     queue.Config     `yaml:"queue"`
	Journal   journal.Config   `yaml:"journal"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Target, "target", All, `What to run: generator, processor or all.`)
	f.StringVar(&c.Dir, "dir", "./archives", `Directory archives are written to and read from. Must exist.`)
	f.StringVar(&c.PushGateway, "metrics.push-gateway", "", `Prometheus pushgateway url metrics are pushed to after a run. Empty disables pushing.`)
	f.IntVar(&c.PushRetryMax, "metrics.push-retry-max", 4, `Retries of a failed metrics push.`)
	f.DurationVar(&c.PushTimeout, "metrics.push-timeout", 10*time.Second, `Timeout of a single metrics push request.`)

	c.Log.RegisterFlags(f)
	c.Generator.RegisterFlags("generator.", f)
	c.Processor.RegisterFlags("processor.", f)
	c.ObjStore.RegisterFlags("obj-store.", f)
	c.Queue.RegisterFlags("queue.", f)
	c.Journal.RegisterFlags("journal.", f)
}

func (c *Config) Validate() error {
	switch c.Target {
	case Generator, Processor, All:
	default:
		return errors.Errorf("invalid target %q", c.Target)
	}

	if c.Dir == "" {
		return errors.New("archive dir is empty")
	}

	if err := c.Generator.Validate(); err != nil {
		return errors.Wrap(err, "generator config")
	}

	return nil
}

// App runs one generate-then-process pass as a dskit service. The service
// terminates once the pass is done.
type App struct {
	services.Service

	cfg Config
	log gklog.Logger
	reg prometheus.Registerer

	generator *generator.Generator
	processor *processor.Processor
	pub       queue.Publisher
	journal   *journal.Journal
	pusher    *http.Client

	executing *atomic.Bool
}

func New(ctx context.Context, cfg Config, reg prometheus.Registerer, log gklog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "arcxml config")
	}

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	log = gklog.With(log, "service", jobName, "target", cfg.Target)

	cfg.Generator.Dir = cfg.Dir
	cfg.Processor.Dir = cfg.Dir

	store, err := objstore.NewWriter(cfg.ObjStore)
	if err != nil {
		return nil, errors.Wrap(err, "arcxml init obj store")
	}

	pub, err := queue.NewPublisher(cfg.Queue, log)
	if err != nil {
		return nil, errors.Wrap(err, "arcxml init queue pub")
	}

	j, err := journal.New(ctx, cfg.Journal, log)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Wrap(err, "arcxml init journal")
	}

	wrapped := prometheus.WrapRegistererWithPrefix(jobName+"_", reg)

	a := &App{
		cfg: cfg,
		log: log,
		reg: reg,

		generator: generator.New(cfg.Generator, nil, pub, store, wrapped, log),
		processor: processor.New(cfg.Processor, j, wrapped, log),
		pub:       pub,
		journal:   j,
		pusher:    newPushClient(cfg, log),

		executing: atomic.NewBool(false),
	}

	a.Service = services.NewBasicService(nil, a.Run, a.stop)

	return a, nil
}

// Run generates the configured number of archives and then appends every
// archive found in the directory to the CSV files, leftovers from earlier runs
// included. Concurrent calls are rejected.
func (a *App) Run(ctx context.Context) error {
	if !a.executing.CompareAndSwap(false, true) {
		return errors.New("arcxml run already in progress")
	}
	defer a.executing.Store(false)

	if a.cfg.Target == All || a.cfg.Target == Generator {
		if err := a.generator.GenerateAll(ctx); err != nil {
			return err
		}
	}

	if a.cfg.Target == All || a.cfg.Target == Processor {
		if err := a.processor.ProcessDirectory(ctx); err != nil {
			return err
		}
	}

	_ = level.Info(a.log).Log("msg", "run completed")

	return a.pushMetrics()
}

func (a *App) pushMetrics() error {
	if a.cfg.PushGateway == "" {
		return nil
	}

	g, ok := a.reg.(prometheus.Gatherer)
	if !ok {
		return errors.New("metrics registerer is not a gatherer")
	}

	if err := push.New(a.cfg.PushGateway, jobName).Client(a.pusher).Gatherer(g).Push(); err != nil {
		return errors.Wrap(err, "push metrics")
	}

	return nil
}

func newPushClient(cfg Config, log gklog.Logger) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.PushRetryMax
	c.HTTPClient.Timeout = cfg.PushTimeout
	c.Logger = retryLogger{log}

	return c.StandardClient()
}

func (a *App) stop(failureCase error) error {
	if failureCase != nil {
		_ = level.Error(a.log).Log("msg", "run failed", "err", failureCase)
	}

	if err := a.pub.Close(); err != nil {
		_ = level.Error(a.log).Log("msg", err.Error())
	}

	if err := a.journal.Dispose(context.Background()); err != nil {
		_ = level.Error(a.log).Log("msg", err.Error())
	}

	return nil
}

// retryLogger routes retryablehttp logs through go-kit.
type retryLogger struct {
	log gklog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) {
	_ = level.Error(l.log).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l retryLogger) Info(msg string, kv ...interface{}) {
	_ = level.Info(l.log).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l retryLogger) Debug(msg string, kv ...interface{}) {
	_ = level.Debug(l.log).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l retryLogger) Warn(msg string, kv ...interface{}) {
	_ = level.Warn(l.log).Log(append([]interface{}{"msg", msg}, kv...)...)
}
