package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oleksiy-v/wsbridge/core"
	"github.com/oleksiy-v/wsbridge/logger"
	"github.com/spf13/viper"
)

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, /etc/wsbridge/config.yaml, etc.)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := initLogger(cfg); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logger.Logger().Info("Shutting down wsbridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := core.NewTransport(cfg)
	if err != nil {
		logger.Error("Failed to create transport", "error", err)
		os.Exit(1)
	}

	if err := transport.Connect(ctx); err != nil {
		logger.Error("Failed to connect", "error", err, "url", cfg.Websocket.URL)
		os.Exit(1)
	}

	conn, err := core.NewConn(transport, core.Handlers{
		OnBinary: func(data []byte) {
			logger.Info("Binary frame received", "size", len(data))
		},
		OnClose: func(code int, reason string) {
			logger.Info("Connection closed by peer", "code", code, "reason", reason)
		},
	}, logger.Logger())
	if err != nil {
		logger.Error("Failed to create connection", "error", err)
		os.Exit(1)
	}

	jsonConn := core.NewJSONConn(conn, core.JSONHandlers{
		OnText: func(msg string) {
			logger.Info("Text message received", "text", msg)
		},
		OnJSON: func(typ string, data json.RawMessage) {
			logger.Info("JSON message received", "type", typ, "data", string(data))
		},
	})

	// a connection group so SIGINT tears everything down in one place
	group := core.NewGroup(logger.Logger())
	group.Add(conn)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig)
		group.Shutdown("client shutting down")
		cancel()
	}()

	if err := jsonConn.SendText("hello from wsbridge"); err != nil {
		logger.Error("Failed to send greeting", "error", err)
	}

	logger.Info("Connected, running until the connection closes", "url", cfg.Websocket.URL)
	if err := conn.Run(ctx); err != nil {
		logger.Error("Connection terminated abnormally", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads the YAML configuration via viper.
func loadConfig(configPath string) (core.Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/wsbridge")
	}

	if err := viper.ReadInConfig(); err != nil {
		return core.Config{}, fmt.Errorf("failed to read config: %v", err)
	}

	var cfg core.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return core.Config{}, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	return cfg, nil
}

func initLogger(cfg core.Config) error {
	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Outputs: cfg.Logging.Outputs,
	}

	if viper.GetBool("debug") {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}

	return logger.Init(logCfg)
}
