package main

import (
	"fmt"
	"os"

	"cryptosim/internal/cli"
	"cryptosim/internal/config"
	"cryptosim/internal/logging"
)

func main() {
	cfg, err := config.Load(config.DefaultConfigDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Console = cfg.Log.Console
	logCfg.File = cfg.Log.File
	if cfg.Log.Path != "" {
		logCfg.FilePath = cfg.Log.Path
	}
	logger := logging.NewLoggerWithConfig(logCfg)

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
