package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	pkgconfig "github.com/dmitrymomot/drip/pkg/config"
	"github.com/dmitrymomot/drip/pkg/email"
	"github.com/dmitrymomot/drip/pkg/httpserver"
	"github.com/dmitrymomot/drip/pkg/pg"
	"github.com/dmitrymomot/drip/pkg/redis"
	"github.com/dmitrymomot/drip/pkg/reminder"
	"github.com/dmitrymomot/drip/pkg/sms"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrInvalidConfig wraps every cross-field validation failure.
var ErrInvalidConfig = errors.New("invalid dripd configuration")

// App holds process-wide settings.
type App struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"dripd"`
	LogLevel    string `env:"LOG_LEVEL"`
}

// Store selects the task store backend.
type Store struct {
	Driver     string `env:"DRIP_STORE_DRIVER" envDefault:"memory"`
	SQLitePath string `env:"DRIP_SQLITE_PATH" envDefault:"drip.db"`
}

// Drip holds the reminder engine settings.
type Drip struct {
	DelayProfile      string        `env:"DRIP_DELAY_PROFILE" envDefault:"production"`
	DelayProfilesFile string        `env:"DRIP_DELAY_PROFILES_FILE"`
	BatchLimit        int           `env:"DRIP_BATCH_LIMIT" envDefault:"50"`
	SendTimeout       time.Duration `env:"DRIP_SEND_TIMEOUT" envDefault:"30s"`
	StaleClaimTimeout time.Duration `env:"DRIP_STALE_CLAIM_TIMEOUT" envDefault:"15m"` // 0 disables recovery
	RetryMaxAttempts  int           `env:"DRIP_RETRY_MAX_ATTEMPTS" envDefault:"1"`    // 1 means no retry
	RetryBackoff      time.Duration `env:"DRIP_RETRY_BACKOFF" envDefault:"10m"`
	TriggerSchedule   string        `env:"DRIP_TRIGGER_SCHEDULE" envDefault:"@every 1m"` // empty disables the in-process trigger
	TriggerToken      string        `env:"DRIP_TRIGGER_TOKEN"`
	AppointmentsQuery string        `env:"DRIP_APPOINTMENTS_QUERY"` // postgres only; empty disables the appointments oracle
}

// Config is the full dripd configuration.
type Config struct {
	App      App
	Store    Store
	Postgres pg.Config
	Redis    redis.Config
	Email    email.Config
	SMS      sms.Config
	Drip     Drip
	HTTP     httpserver.Config
}

// Load reads the optional env files, parses the environment and validates the result.
func Load(envFiles ...string) (Config, error) {
	if err := pkgconfig.LoadEnv(envFiles...); err != nil {
		return Config{}, err
	}

	cfg, err := pkgconfig.Load[Config]()
	if err != nil {
		return Config{}, err
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.ConnectionString == "" {
			errs = append(errs, errors.New("PG_CONN_URL is required for the postgres store"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("DRIP_SQLITE_PATH is required for the sqlite store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Drip.AppointmentsQuery != "" && c.Store.Driver != DriverPostgres {
		errs = append(errs, errors.New("DRIP_APPOINTMENTS_QUERY requires the postgres store"))
	}
	if c.Drip.BatchLimit <= 0 {
		errs = append(errs, errors.New("DRIP_BATCH_LIMIT must be positive"))
	}
	if c.Drip.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("DRIP_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Email.DevDir == "" && c.Email.PostmarkServerToken == "" {
		errs = append(errs, errors.New("either POSTMARK_SERVER_TOKEN or EMAIL_DEV_DIR must be set"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// DelayPolicy registers the profiles from DelayProfilesFile, if any, and
// returns the profile selected by DelayProfile.
func (d Drip) DelayPolicy() (reminder.DelayPolicy, error) {
	if d.DelayProfilesFile != "" {
		f, err := os.Open(d.DelayProfilesFile)
		if err != nil {
			return reminder.DelayPolicy{}, fmt.Errorf("failed to open delay profiles file: %w", err)
		}
		defer f.Close()

		profiles, err := reminder.LoadProfiles(f)
		if err != nil {
			return reminder.DelayPolicy{}, fmt.Errorf("failed to load %s: %w", d.DelayProfilesFile, err)
		}
		for _, p := range profiles {
			reminder.RegisterProfile(p)
		}
	}
	return reminder.ProfileByName(d.DelayProfile)
}

// RetryPolicy maps the retry settings onto a reminder.RetryPolicy.
func (d Drip) RetryPolicy() reminder.RetryPolicy {
	if d.RetryMaxAttempts <= 1 {
		return reminder.NoRetry{}
	}
	return reminder.LinearRetry{MaxAttempts: d.RetryMaxAttempts, Backoff: d.RetryBackoff}
}
