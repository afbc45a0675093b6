package hub

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AllowedOrigins []string      `envconfig:"WS_ALLOWED_ORIGINS"` // empty allows every origin
	WriteWait      time.Duration `envconfig:"WS_WRITE_WAIT" default:"10s"`
	PongWait       time.Duration `envconfig:"WS_PONG_WAIT" default:"60s"`
	MaxMessageSize int64         `envconfig:"WS_MAX_MESSAGE_SIZE" default:"4096"`
	SendBuffer     int           `envconfig:"WS_SEND_BUFFER" default:"64"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
