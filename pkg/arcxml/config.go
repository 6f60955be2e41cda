package arcxml

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadConfig overlays the YAML file at path onto cfg. Keys missing from the
// file keep the values already in cfg, usually the flag defaults.
func LoadConfig(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}

	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return errors.Wrap(err, "parse config file")
	}

	return nil
}
