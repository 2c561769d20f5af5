package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Game       Game   `yaml:"game"`
}

// Redis - an empty host means session tokens are kept in process memory instead.
type Redis struct {
	Host string `yaml:"host" env-default:""`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	GraceSeconds   int `yaml:"grace-seconds" env-default:"300"`
	RoomTTLMinutes int `yaml:"room-ttl-minutes" env-default:"10"`
	ShotWindowMS   int `yaml:"shot-window-ms" env-default:"1000"`
	ShotQuota      int `yaml:"shot-quota" env-default:"1"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Game) GraceDuration() time.Duration {
	return time.Duration(that.GraceSeconds) * time.Second
}

func (that *Game) RoomTTL() time.Duration {
	return time.Duration(that.RoomTTLMinutes) * time.Minute
}

func (that *Game) ShotWindow() time.Duration {
	return time.Duration(that.ShotWindowMS) * time.Millisecond
}
