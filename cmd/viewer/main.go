// Package main is the entry point for the landscape viewer.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/config"
	"github.com/Faultbox/landsim-viewer/internal/logger"
	"github.com/Faultbox/landsim-viewer/internal/session"
	"github.com/Faultbox/landsim-viewer/internal/viewer"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.SaveRequested() {
		path, err := cfg.Persist()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: viewer [flags] <session.yaml>")
		os.Exit(2)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Landscape Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	sess, err := session.Load(flag.Arg(0))
	if err != nil {
		logger.Error("failed to load session", zap.String("path", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}

	v, err := viewer.New(cfg, sess)
	if err != nil {
		// No window or GL context means nothing can be shown.
		logger.Fatal("failed to start viewer", zap.Error(err))
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
