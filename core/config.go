package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineDummy    = "dummy"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Realtime drivers
const (
	DriverInMem    = "inmem"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type (
	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		RollbarToken string

		Database DatabaseConfig
		Realtime RealtimeConfig
		Chat     ChatConfig
	}

	DatabaseConfig struct {
		Engine string
		DSN    string
		Seed   bool
	}

	RealtimeConfig struct {
		Driver        string
		RedisAddr     string
		ChannelPrefix string
		BufferSize    int
	}

	ChatConfig struct {
		// ReloadOnResume re-runs the history load whenever the push channel
		// reports it was dropped and resumed.
		ReloadOnResume      bool
		UnknownSenderPrefix string
	}
)

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Classroom")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("database.engine", EngineDummy)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.seed", true)
	v.SetDefault("realtime.driver", DriverInMem)
	v.SetDefault("realtime.redisAddr", "localhost:6379")
	v.SetDefault("realtime.channelPrefix", "course_messages")
	v.SetDefault("realtime.bufferSize", 64)
	v.SetDefault("chat.reloadOnResume", true)
	v.SetDefault("chat.unknownSenderPrefix", "User")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Database: DatabaseConfig{
			Engine: strings.ToLower(v.GetString("database.engine")),
			DSN:    v.GetString("database.dsn"),
			Seed:   v.GetBool("database.seed"),
		},
		Realtime: RealtimeConfig{
			Driver:        strings.ToLower(v.GetString("realtime.driver")),
			RedisAddr:     v.GetString("realtime.redisAddr"),
			ChannelPrefix: v.GetString("realtime.channelPrefix"),
			BufferSize:    v.GetInt("realtime.bufferSize"),
		},
		Chat: ChatConfig{
			ReloadOnResume:      v.GetBool("chat.reloadOnResume"),
			UnknownSenderPrefix: v.GetString("chat.unknownSenderPrefix"),
		},
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (conf *Config) validate() error {
	switch conf.Database.Engine {
	case EngineDummy, EngineSQLite, EnginePostgres:
	default:
		return errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
	switch conf.Realtime.Driver {
	case DriverInMem, DriverRedis:
	case DriverPostgres:
		if conf.Database.Engine != EnginePostgres {
			return errors.New("realtime driver postgres requires database engine postgres")
		}
	default:
		return errors.Errorf("unknown realtime driver %q", conf.Realtime.Driver)
	}
	if conf.Realtime.BufferSize <= 0 {
		return errors.New("realtime buffer size must be positive")
	}
	return nil
}
