package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/tallpines/campreg/internal/pkg/logger"
	"github.com/tallpines/campreg/internal/server"
)

// @title Tall Pines Camp Registration API
// @version 1.0
// @description Application lifecycle and notification automation for the camper registration portal

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token issued by the camp's identity provider

func main() {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	srv, err := server.NewServer()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
