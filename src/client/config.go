package client

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL string        `envconfig:"ORDERSTATE_URL" default:"http://localhost:9898"`
	Token   string        `envconfig:"WEBHOOK_TOKEN"`
	Timeout time.Duration `envconfig:"CLIENT_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
