// Package config parses environment variables into typed structs.
//
// It wraps github.com/caarlos0/env/v11 for struct tags and
// github.com/joho/godotenv for dotenv files. A ./.env file is picked up
// automatically on first use; LoadEnv loads explicit files such as the one
// passed to dripd with -env.
//
//	cfg, err := config.Load[pg.Config]()
//	if errors.Is(err, config.ErrParsingConfig) {
//	    // missing required variable or malformed value
//	}
package config
