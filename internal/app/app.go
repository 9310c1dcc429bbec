package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"waba-admin/handler"
	"waba-admin/internal/config"
	"waba-admin/internal/integrations/graph"
	"waba-admin/internal/integrations/midtrans"
	"waba-admin/internal/integrations/paramstore"
	"waba-admin/internal/integrations/sendrelay"
	"waba-admin/internal/integrations/supabase"
	"waba-admin/internal/repository"
	"waba-admin/internal/store"
	"waba-admin/internal/usecase"
)

// App is the wired dashboard API shared by the Lambda and HTTP entrypoints.
type App struct {
	Handler *handler.Handler
	Store   *store.PostgresStore
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// New resolves secrets, connects to Postgres and builds every service.
func New(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*App, error) {
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: ssm client: %w", err)
	}
	if err := cfg.ResolveSecrets(ctx, ssmClient); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dynamoClient := awsdynamodb.NewFromConfig(awsCfg)
	messages, err := repository.New(dynamoClient, cfg.MessagesTable)
	if err != nil {
		return nil, fmt.Errorf("app: messages repository: %w", err)
	}
	rag, err := repository.NewRAG(dynamoClient, cfg.RAGTable)
	if err != nil {
		return nil, fmt.Errorf("app: rag repository: %w", err)
	}

	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a, err := build(cfg, messages, rag, pg)
	if err != nil {
		pg.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, messages *repository.Client, rag *repository.RAGClient, pg *store.PostgresStore) (*App, error) {
	var graphOpts []graph.Option
	if cfg.GraphBaseURL != "" {
		graphOpts = append(graphOpts, graph.WithBaseURL(cfg.GraphBaseURL))
	}
	graphClient, err := graph.NewClient(graph.Credentials{
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		SystemToken: cfg.WhatsAppSystemToken,
	}, graphOpts...)
	if err != nil {
		return nil, err
	}
	payments, err := midtrans.NewClient(cfg.MidtransServerKey, cfg.MidtransProduction)
	if err != nil {
		return nil, err
	}
	relay, err := sendrelay.NewClient(cfg.SendAPIEndpoint, cfg.SendAPIKey)
	if err != nil {
		return nil, err
	}
	auth, err := supabase.NewAuthClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	if err != nil {
		return nil, err
	}

	inbox, err := usecase.NewInboxService(messages, relay, graphClient, pg)
	if err != nil {
		return nil, err
	}
	ragService, err := usecase.NewRAGService(rag)
	if err != nil {
		return nil, err
	}
	onboarding, err := usecase.NewOnboardingService(graphClient, pg)
	if err != nil {
		return nil, err
	}
	billing, err := usecase.NewBillingService(payments, pg)
	if err != nil {
		return nil, err
	}
	admin, err := usecase.NewAdminService(pg)
	if err != nil {
		return nil, err
	}
	session, err := usecase.NewSessionService(auth, pg)
	if err != nil {
		return nil, err
	}

	h, err := handler.NewHandler(handler.Deps{
		Inbox:      inbox,
		RAG:        ragService,
		Onboarding: onboarding,
		Billing:    billing,
		Admin:      admin,
		Session:    session,
	})
	if err != nil {
		return nil, err
	}
	return &App{Handler: h, Store: pg}, nil
}
