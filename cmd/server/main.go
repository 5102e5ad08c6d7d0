package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/api"
	"github.com/volkanerene/chartizy-backend2/internal/billing"
	"github.com/volkanerene/chartizy-backend2/internal/chart"
	"github.com/volkanerene/chartizy-backend2/internal/genai"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
	"github.com/volkanerene/chartizy-backend2/pkg/config"
	"github.com/volkanerene/chartizy-backend2/pkg/httpserver"
	"github.com/volkanerene/chartizy-backend2/pkg/jwt"
	"github.com/volkanerene/chartizy-backend2/pkg/logger"
	"github.com/volkanerene/chartizy-backend2/pkg/pg"
	"github.com/volkanerene/chartizy-backend2/pkg/redis"
)

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	PG       pg.Config
	Redis    redis.Config
	Identity identity.Config
	GenAI    genai.Config
	Stripe   billing.StripeConfig
	PayPal   billing.PayPalConfig
	PayTR    billing.PayTRConfig
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log, logger.WithAttrs(slog.String("app", "graphzy")))

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	jwtSvc, err := jwt.New(cfg.Identity.JWTSecret)
	if err != nil {
		return err
	}

	accounts := account.NewPGStore(pool)
	resolver := account.NewResolver(accounts, log)

	idp := identity.NewSupabaseClient(cfg.Identity)
	verifier := identity.NewVerifier(idp, jwtSvc, log)
	auth := identity.NewMiddleware(verifier, resolver)

	manager := billing.NewManager(
		billing.NewPGSessionStore(pool),
		billing.NewReconciler(accounts, log),
		billing.NewRedisDeduper(redisClient, 0),
		log,
		billing.NewStripeProvider(cfg.Stripe),
		billing.NewPayPalProvider(cfg.PayPal),
		billing.NewPayTRProvider(cfg.PayTR),
	)

	ai := genai.New(cfg.GenAI)
	charts := chart.NewService(
		chart.NewPGStore(pool),
		chart.NewPGTemplateStore(pool),
		accounts,
		ai,
		log,
	)

	router := api.NewRouter(api.Deps{
		Log:       log,
		Auth:      auth,
		Identity:  idp,
		Accounts:  accounts,
		Resolver:  resolver,
		Charts:    charts,
		Templates: chart.NewPGTemplateStore(pool),
		Billing:   manager,
		AI:        ai,
		Health: httpserver.Healthcheck(log,
			pg.Healthcheck(pool),
			redis.Healthcheck(redisClient),
		),
	})

	srv := httpserver.New(cfg.HTTP, log)
	return srv.Run(ctx, router)
}
