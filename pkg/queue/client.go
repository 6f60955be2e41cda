package queue

import (
	"flag"

	"github.com/ValerySidorin/arcxml/pkg/queue/message"
	"github.com/ValerySidorin/arcxml/pkg/queue/nats"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

const (
	ChannelName = "arcxml"
)

type Config struct {
	Type string      `yaml:"type"`
	Nats nats.Config `yaml:"nats"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Type, flagPrefix+"type", "", `Queue used to announce generated archives. Supported values: nats. Empty disables announcements.`)
	c.Nats.RegisterFlags(flagPrefix, f)
}

type Publisher interface {
	Pub(channel string, msg *message.Message) error
	Close() error
}

func NewPublisher(cfg Config, log log.Logger) (Publisher, error) {
	switch cfg.Type {
	case "":
		return NopPublisher{}, nil
	case "nats":
		return nats.NewNatsClient(cfg.Nats, log)
	default:
		return nil, errors.New("invalid queue type")
	}
}

type NopPublisher struct{}

func (NopPublisher) Pub(string, *message.Message) error { return nil }

func (NopPublisher) Close() error { return nil }
