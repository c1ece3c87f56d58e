package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load parses environment variables into a new T according to its env tags.
// The first call also loads ./.env if it exists; variables already present in
// the process environment win over the file.
//
//	type StoreConfig struct {
//		Driver string `env:"DRIP_STORE_DRIVER" envDefault:"memory"`
//	}
//
//	cfg, err := config.Load[StoreConfig]()
func Load[T any]() (T, error) {
	defaultEnvLoaded.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load()
		}
	})

	var v T
	if err := env.Parse(&v); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any]() T {
	v, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return v
}

// LoadEnv loads one or more dotenv files into the process environment.
// Earlier files win over later ones, and the process environment wins over both.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}
