package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"waba-admin/internal/app"
	"waba-admin/internal/config"
	"waba-admin/internal/logger"
)

func main() {
	ctx := context.Background()
	logger.InitLogger()

	// ---- Configuration (read only here) ----
	cfg := config.Load()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// ---- Handler ----
	a, err := app.New(ctx, cfg, awsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build handler")
	}

	lambda.Start(a.Handler.Handle)
}
