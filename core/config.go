package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Credential store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type (
	Config struct {
		Env     string
		Debug   bool
		AppName string
		Build   string
		Host    string

		API   APIConfig
		Chat  ChatConfig
		Store StoreConfig

		RollbarToken string
	}

	APIConfig struct {
		BaseURL        string
		RequestTimeout time.Duration
	}

	ChatConfig struct {
		PollInterval time.Duration
	}

	StoreConfig struct {
		Backend string
		Key     string // name of the persisted blob
		Dir     string // file backend only

		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
)

// NewConfig reads the configuration from the environment.
// ENV selects the environment (DEV by default) and is used as the variable prefix, eg. DEV_APIURL.
// A `config/.env.<env>` file is loaded first when it exists.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "PracticeHub")
	conf.SetDefault("build", "dev")
	conf.SetDefault("apiURL", "http://localhost:5000/api")
	conf.SetDefault("requestTimeout", 15*time.Second)
	conf.SetDefault("pollInterval", 3*time.Second)
	conf.SetDefault("storeBackend", StoreFile)
	conf.SetDefault("storeKey", "auth-storage")
	conf.SetDefault("storeDir", defaultStoreDir())
	conf.SetDefault("redisAddr", "127.0.0.1:6379")
	conf.SetDefault("redisPassword", "")
	conf.SetDefault("redisDB", 0)
	conf.SetDefault("rollbarToken", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.Set("debug", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	host, _ := os.Hostname()

	return &Config{
		Env:     env,
		Debug:   conf.GetBool("debug"),
		AppName: conf.GetString("appName"),
		Build:   conf.GetString("build"),
		Host:    host,
		API: APIConfig{
			BaseURL:        strings.TrimRight(conf.GetString("apiURL"), "/"),
			RequestTimeout: conf.GetDuration("requestTimeout"),
		},
		Chat: ChatConfig{
			PollInterval: conf.GetDuration("pollInterval"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(conf.GetString("storeBackend")),
			Key:           conf.GetString("storeKey"),
			Dir:           conf.GetString("storeDir"),
			RedisAddr:     conf.GetString("redisAddr"),
			RedisPassword: conf.GetString("redisPassword"),
			RedisDB:       conf.GetInt("redisDB"),
		},
		RollbarToken: conf.GetString("rollbarToken"),
	}
}

func defaultStoreDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "practicehub")
}
