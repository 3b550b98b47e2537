// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/ghosttype/ghosttype/config"
	"github.com/ghosttype/ghosttype/inference"
	"github.com/ghosttype/ghosttype/logging"
	"github.com/ghosttype/ghosttype/middleware"
	"github.com/ghosttype/ghosttype/transport"
)

var basePathFlag = flag.String("base-path", "", "Base directory for config.json, models/, and dumps (overrides GHOSTTYPE_BASE_PATH)")

// @title           GhostType ASR Service
// @version         1.0
// @description     A self-hosted, duplex speech-to-text service over websockets.
// @host            localhost:8000
// @BasePath        /
func main() {
	flag.Parse()

	env := config.LoadEnvironment()
	basePath := *basePathFlag
	if basePath == "" {
		basePath = env.BasePath
	}
	if basePath == "" {
		basePath = "."
	}

	cfg, err := config.Load(filepath.Join(basePath, "config.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v (using defaults)\n", err)
	}

	logLevel := cfg.LogLevel
	if env.Log != "" {
		logLevel = env.Log
	}

	sink, logFile, err := logging.Sink(env.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	log := logging.New(sink, "server", logging.LevelFromString(logLevel))

	modelPath := filepath.Join(basePath, "models", "sensevoice-small.onnx")
	recognizer, err := inference.NewEngine(logging.New(sink, "asr", logging.LevelFromString(logLevel)), modelPath, inference.Config{
		ExpectedSampleRate: 16000,
	})
	if err != nil {
		log.Error().Err(err).Str("path", modelPath).Msg("model load failed, exiting")
		os.Exit(2)
	}
	defer recognizer.Close()

	var authHandler gin.HandlerFunc
	if cfg.Auth.Enabled {
		authMiddleware, err := middleware.NewAuthMiddleware(cfg)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware init failed, exiting")
			os.Exit(2)
		}
		authHandler = authMiddleware.Handler()
	}

	server := transport.New(logging.New(sink, "ws", logging.LevelFromString(logLevel)), recognizer, env.DumpWav, env.DumpWavDir, authHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info().Str("addr", addr).Msg("Server ready")
	if err := server.Run(addr); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
