package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 进程配置：.env → 环境变量 → 命令行参数，后者覆盖前者
type Config struct {
	TCPAddr      string
	HTTPAddr     string
	Codec        string
	QueueLimit   int
	WriteTimeout time.Duration
	LogFile      string
	LogLevel     string
	Spawn        string
	SpawnWidth   float64
	SpawnHeight  float64
}

// Default 默认值
func Default() Config {
	return Config{
		TCPAddr:      "0.0.0.0:3042",
		HTTPAddr:     ":8080",
		Codec:        "binary",
		WriteTimeout: 10 * time.Second,
		LogFile:      "app.log",
		LogLevel:     "debug",
		Spawn:        "random",
		SpawnWidth:   800,
		SpawnHeight:  600,
	}
}

// Load 读取可选的 .env 文件（不存在不算错误），再解析环境变量和 args
func Load(envFile string, args []string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := Default()
	if err := cfg.fromEnv(); err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("game-server", flag.ContinueOnError)
	fset.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "tcp listen address, e.g. 0.0.0.0:3042")
	fset.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "http listen address for /ws and admin endpoints")
	fset.StringVar(&cfg.Codec, "codec", cfg.Codec, "tcp wire codec: binary or json")
	fset.IntVar(&cfg.QueueLimit, "queue-limit", cfg.QueueLimit, "per-connection outbound queue limit, 0 for unbounded")
	fset.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-write deadline, 0 disables")
	fset.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path, empty logs to stderr")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fset.StringVar(&cfg.Spawn, "spawn", cfg.Spawn, "spawn policy: random or fixed")
	fset.Float64Var(&cfg.SpawnWidth, "spawn-width", cfg.SpawnWidth, "random spawn area width")
	fset.Float64Var(&cfg.SpawnHeight, "spawn-height", cfg.SpawnHeight, "random spawn area height")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) fromEnv() error {
	setString(&c.TCPAddr, "TCP_ADDR")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.Codec, "CODEC")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Spawn, "SPAWN")
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v := os.Getenv("QUEUE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUEUE_LIMIT: %w", err)
		}
		c.QueueLimit = n
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WRITE_TIMEOUT: %w", err)
		}
		c.WriteTimeout = d
	}
	for key, dst := range map[string]*float64{"SPAWN_WIDTH": &c.SpawnWidth, "SPAWN_HEIGHT": &c.SpawnHeight} {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate 检查取值范围
func (c Config) Validate() error {
	if c.TCPAddr == "" {
		return fmt.Errorf("tcp address must not be empty")
	}
	switch c.Codec {
	case "binary", "json":
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	switch c.Spawn {
	case "random", "fixed":
	default:
		return fmt.Errorf("unknown spawn policy %q", c.Spawn)
	}
	if c.QueueLimit < 0 {
		return fmt.Errorf("queue limit must be >= 0, got %d", c.QueueLimit)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write timeout must be >= 0, got %s", c.WriteTimeout)
	}
	return nil
}
