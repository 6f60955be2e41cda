package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValerySidorin/arcxml/pkg/arcxml"
	util_log "github.com/ValerySidorin/arcxml/pkg/util/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

const configFileOption = "config.file"

func main() {
	var (
		cfg        arcxml.Config
		configFile string
	)

	flag.StringVar(&configFile, configFileOption, "", `YAML configuration file. Command line flags take precedence over it.`)
	cfg.RegisterFlags(flag.CommandLine)

	// Defaults come from flags, the config file overrides them and explicit
	// flags override the config file.
	if path := parseConfigFileParameter(os.Args[1:]); path != "" {
		util_log.CheckFatal("loading config", arcxml.LoadConfig(path, &cfg))
	}
	flag.Parse()

	logger := util_log.InitLogger(&cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := arcxml.New(ctx, cfg, prometheus.NewRegistry(), logger)
	util_log.CheckFatal("initializing arcxml", err)

	util_log.CheckFatal("starting arcxml", app.StartAsync(ctx))
	if err := app.AwaitTerminated(context.Background()); err != nil {
		stop()
		util_log.CheckFatal("running arcxml", app.FailureCase())
	}

	_ = level.Info(logger).Log("msg", "arcxml finished")
}

func parseConfigFileParameter(args []string) string {
	var configFile string

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")

	// Unknown flags and positional args stop Parse, so try every suffix.
	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	return configFile
}
