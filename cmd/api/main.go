package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/core2cover/api/internal/di"
	"github.com/core2cover/api/internal/handlers"
	"github.com/core2cover/api/internal/payments"
	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/config"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/platform/idempotency"
	"github.com/core2cover/api/internal/platform/jobs"
	"github.com/core2cover/api/internal/platform/metrics"
	"github.com/core2cover/api/internal/platform/observability"
	"github.com/core2cover/api/internal/platform/ratelimit"
	"github.com/core2cover/api/internal/platform/secrets"
	platformstorage "github.com/core2cover/api/internal/platform/storage"
	"github.com/core2cover/api/internal/repositories"
	firestoreRepo "github.com/core2cover/api/internal/repositories/firestore"
	"github.com/core2cover/api/internal/services"
)

const serviceName = "api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	logger, err := observability.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, firestoreOptions(cfg)...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, cloudOptions(cfg)...)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	topic := pubsubClient.Topic(cfg.PubSub.NotificationsTopic)
	defer topic.Stop()

	publisher, err := jobs.NewPubSubNotificationPublisher(topic)
	if err != nil {
		logger.Fatal("failed to initialise notification publisher", zap.Error(err))
	}

	storageClient, err := storage.NewClient(ctx, cloudOptions(cfg)...)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "firestore", Check: firestoreProvider.Ping},
		{Name: "media-bucket", Optional: true, Check: func(ctx context.Context) error {
			_, err := storageClient.Bucket(cfg.Storage.MediaBucket).Attrs(ctx)
			return err
		}},
		{Name: "pubsub", Optional: true, Check: func(ctx context.Context) error {
			ok, err := topic.Exists(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("topic %s not found", cfg.PubSub.NotificationsTopic)
			}
			return nil
		}},
	})
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, health)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	externals := di.Externals{
		Notifications: publisher,
		Build:         buildInfoFromEnv(envValues, cfg, startedAt),
		Logger:        logger,
	}
	if uploads := newUploadSigner(logger, cfg); uploads != nil {
		externals.Uploads = uploads
	}
	if refunder := newRefunder(logger, cfg); refunder != nil {
		externals.Refunds = refunder
	}

	container, err := di.NewContainer(ctx, cfg, registry, externals)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	httpMetrics := metrics.NewHTTPMetrics(serviceName)

	rateStore, sweeper := newRateLimitStore(cfg, firestoreProvider)
	userLimit := ratelimit.Middleware(rateStore, cfg.RateLimits.Requests, cfg.RateLimits.Window,
		ratelimit.ByIdentityOrIP("user", cfg.RateLimits.TrustedProxies), ratelimit.WithRejectHook(httpMetrics.ObserveRateLimited))
	publicLimit := ratelimit.Middleware(rateStore, cfg.RateLimits.Requests, cfg.RateLimits.Window,
		ratelimit.ByIdentityOrIP("public", cfg.RateLimits.TrustedProxies), ratelimit.WithRejectHook(httpMetrics.ObserveRateLimited))

	idempotencyStore := idempotency.NewFirestoreStore(firestoreProvider)
	guard := idempotency.Guard(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	ratelimit.StartSweeper(workersCtx, sweeper, cfg.RateLimits.SweepInterval, logger.Named("ratelimit"))
	idempotency.StartJanitor(workersCtx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))

	svc := container.Services
	routeOpts := []handlers.RouteOption{
		handlers.WithAuthenticatedMiddlewares(userLimit),
		handlers.WithIdempotencyGuard(guard),
	}
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, svc.Checkout, routeOpts...)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, routeOpts...)
	returnHandlers := handlers.NewReturnHandlers(authenticator, svc.Returns, routeOpts...)
	meHandlers := handlers.NewMeHandlers(authenticator, svc.StoreCredit, cfg.Pricing.Currency, routeOpts...)
	sellerHandlers := handlers.NewSellerHandlers(authenticator, handlers.SellerDeps{
		Orders:   svc.Orders,
		Returns:  svc.Returns,
		Products: svc.Products,
	}, routeOpts...)
	internalHandlers := handlers.NewInternalReturnHandlers(svc.Returns)
	pricingHandlers := handlers.NewPricingHandlers(svc.Pricing.Currency())

	var healthOpts []handlers.HealthOption
	healthOpts = append(healthOpts, handlers.WithHealthBuildInfo(externals.Build))
	if svc.System != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(svc.System))
	}

	oidc := auth.NewOIDCValidator(auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL))

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(traceProjectID(cfg)),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			httpMetrics.Middleware,
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithMetricsHandler(httpMetrics.Handler()),
		handlers.WithPublicMiddlewares(publicLimit),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCartRoutes(checkoutHandlers.CartRoutes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReturnRoutes(returnHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithSellerRoutes(sellerHandlers.Routes),
		handlers.WithInternalMiddlewares(oidc.RequireOIDC(cfg.Security.OIDC.Audience, cfg.Security.OIDC.Issuers)),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	stopWorkers()

	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("repository close error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, startedAt time.Time) services.BuildInfo {
	lookup := func(keys ...string) string {
		for _, key := range keys {
			if value := strings.TrimSpace(env[key]); value != "" {
				return value
			}
		}
		return ""
	}
	return services.BuildInfo{
		Version:     lookup("C2C_BUILD_VERSION", "K_REVISION"),
		CommitSHA:   lookup("C2C_BUILD_COMMIT_SHA"),
		Environment: cfg.Security.Environment,
		StartedAt:   startedAt,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func cloudOptions(cfg config.Config) []option.ClientOption {
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func firestoreOptions(cfg config.Config) []pfirestore.ProviderOption {
	if opts := cloudOptions(cfg); len(opts) > 0 {
		return []pfirestore.ProviderOption{pfirestore.WithClientOptions(opts...)}
	}
	return nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("C2C_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("C2C_FIREBASE_PROJECT_ID")
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(defaultProject),
	}
	if path := lookup("C2C_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentialsFile := lookup("C2C_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve before the server starts. The Stripe key is
// only required while PSP refunds are enabled.
func requiredSecretNames(env map[string]string) []string {
	raw := strings.ToLower(strings.TrimSpace(env["C2C_FEATURE_PSP_REFUNDS"]))
	switch raw {
	case "0", "false", "no", "off":
		return nil
	}
	if strings.TrimSpace(env["C2C_PSP_STRIPE_API_KEY"]) == "" {
		return nil
	}
	return []string{"PSP.StripeAPIKey"}
}

func newUploadSigner(logger *zap.Logger, cfg config.Config) *platformstorage.UploadSigner {
	file := strings.TrimSpace(cfg.Firebase.CredentialsFile)
	if file == "" {
		logger.Warn("signed uploads disabled: no service account credentials configured")
		return nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromFile(file)
	if err != nil {
		logger.Warn("signed uploads disabled", zap.Error(err))
		return nil
	}
	uploads, err := platformstorage.NewUploadSigner(signer, cfg.Storage.MediaBucket,
		platformstorage.WithUploadTTL(cfg.Storage.UploadURLTTL),
		platformstorage.WithMaxUploadBytes(cfg.Storage.MaxUploadBytes),
	)
	if err != nil {
		logger.Warn("signed uploads disabled", zap.Error(err))
		return nil
	}
	return uploads
}

func newRefunder(logger *zap.Logger, cfg config.Config) *payments.StripeRefunder {
	if !cfg.Features.EnableRefundsPSP || strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		logger.Info("payment provider refunds disabled")
		return nil
	}
	refunder, err := payments.NewStripeRefunder(payments.StripeRefunderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: payments.StripeLogger(observability.EventLogger(logger, "stripe")),
	})
	if err != nil {
		logger.Warn("payment provider refunds disabled", zap.Error(err))
		return nil
	}
	return refunder
}

func newRateLimitStore(cfg config.Config, provider *pfirestore.Provider) (ratelimit.Store, ratelimit.Sweeper) {
	if cfg.RateLimits.Backend == config.RateLimitBackendFirestore {
		store := ratelimit.NewFirestoreStore(provider, time.Now)
		return store, store
	}
	store := ratelimit.NewMemoryStore(time.Now)
	return store, store
}
