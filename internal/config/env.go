package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds runtime settings read from the environment.
type Env struct {
	DataDir  string  `env:"DYNSHOT_DATA_DIR"  envDefault:".dynshot"`
	LogLevel string  `env:"DYNSHOT_LOG_LEVEL" envDefault:"info"`
	FDEps    float64 `env:"DYNSHOT_FD_EPS"`
	Workers  int     `env:"DYNSHOT_WORKERS"   envDefault:"4"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply overlays environment settings that the config leaves unset.
func (e Env) Apply(c *Config) {
	if c.FD.Eps == 0 && e.FDEps > 0 {
		c.FD.Eps = e.FDEps
	}
}
