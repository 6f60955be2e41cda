package nats

import (
	"flag"

	"github.com/ValerySidorin/arcxml/pkg/queue/message"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	Url string `yaml:"url"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Url, flagPrefix+"nats.url", nats.DefaultURL, `NATS server url.`)
}

type NatsClient struct {
	conn *nats.Conn
	log  log.Logger
}

func NewNatsClient(cfg Config, log log.Logger) (*NatsClient, error) {
	conn, err := nats.Connect(cfg.Url)
	if err != nil {
		return nil, errors.Wrap(err, "initialize nats connection")
	}

	return &NatsClient{
		conn: conn,
		log:  log,
	}, nil
}

func (n *NatsClient) Pub(channel string, msg *message.Message) error {
	if err := n.conn.Publish(channel, []byte(msg.String())); err != nil {
		return errors.Wrap(err, "nats publish")
	}
	_ = level.Debug(n.log).Log("msg", "published", "subject", channel, "message", msg.String())

	return nil
}

// Close flushes pending publishes before dropping the connection.
func (n *NatsClient) Close() error {
	if err := n.conn.Drain(); err != nil {
		return errors.Wrap(err, "nats drain")
	}

	return nil
}
