package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oleksiy-v/wsbridge/pkg/interfaces"
	"github.com/oleksiy-v/wsbridge/protocols/websocket"
)

// Config is the top-level configuration, shaped to match the YAML file.
type Config struct {
	Transport string           `mapstructure:"transport"`
	Websocket *WebsocketConfig `mapstructure:"websocket"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}

type WebsocketConfig struct {
	URL              string        `mapstructure:"url"`
	AccessToken      string        `mapstructure:"access_token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	DialAttempts     int           `mapstructure:"dial_attempts"`
}

// NewTransport creates the transport selected by the configuration.
// Unknown transport kinds fail with ErrUnsupportedProtocol.
func NewTransport(config Config) (interfaces.Transport, error) {
	switch config.Transport {
	case "websocket":
		if config.Websocket == nil {
			return nil, errors.New("websocket config missing")
		}

		headers := http.Header{}
		if config.Websocket.AccessToken != "" {
			headers.Set("Authorization", "Bearer "+config.Websocket.AccessToken)
		}

		return websocket.NewWSTransport(websocket.Config{
			URL:              config.Websocket.URL,
			Headers:          headers,
			HandshakeTimeout: config.Websocket.HandshakeTimeout,
			WriteWait:        config.Websocket.WriteWait,
			ReadLimit:        config.Websocket.ReadLimit,
			DialAttempts:     config.Websocket.DialAttempts,
		})
	default:
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedProtocol, config.Transport)
	}
}
