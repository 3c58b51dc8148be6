package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	ReapInterval  time.Duration `env:"REAP_INTERVAL" envDefault:"5m"`
	ExportEnabled bool          `env:"EXPORT_ENABLED" envDefault:"true"`
	ExportFile    string        `env:"EXPORT_FILE" envDefault:"./rpsdash-results.txt"`
	Debug         bool          `env:"DEBUG" envDefault:"false"`
}

func FromEnv() (Config, error) {
	c := Config{}
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
