package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/checkout"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/handlers"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/notify"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/orders"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/config"
	pfirestore "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/firestore"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/observability"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/secrets"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/session"
	firestoreRepo "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/repositories/firestore"
)

const (
	registrySweepInterval = 5 * time.Minute
	orderHistoryLimit     = 50
	shutdownTimeout       = 10 * time.Second
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	sessionManager, err := newSessionManager(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}

	opener, closeOpener, err := newOpener(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise message opener", zap.Error(err))
	}
	defer closeOpener()

	dispatcher, err := notify.NewDispatcher(notify.DispatcherDeps{
		Opener:  opener,
		Timeout: cfg.Messaging.DispatchTimeout,
		Logger:  observability.EventLogger(logger.Named("notify")),
	})
	if err != nil {
		logger.Fatal("failed to initialise dispatcher", zap.Error(err))
	}
	composer, err := notify.NewComposer(cfg.Messaging.WhatsAppNumber, cfg.Messaging.ShopName)
	if err != nil {
		logger.Fatal("failed to initialise message composer", zap.Error(err))
	}

	cartRegistry, err := cart.NewRegistry(cart.RegistryDeps{
		Carts:   cartRepo,
		IdleTTL: cfg.Checkout.SessionTTL,
		Logger:  observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart registry", zap.Error(err))
	}
	checkoutRegistry, err := checkout.NewRegistry(checkout.RegistryDeps{
		Carts:      cartRegistry,
		Orders:     orderRepo,
		Composer:   composer,
		Dispatcher: dispatcher,
		AllowGuest: cfg.Checkout.AllowGuest,
		SessionTTL: cfg.Checkout.SessionTTL,
		Logger:     observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout registry", zap.Error(err))
	}
	history, err := orders.NewHistory(orders.HistoryDeps{
		Orders: orderRepo,
		Limit:  orderHistoryLimit,
		Logger: observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order history", zap.Error(err))
	}

	firebaseClient, err := auth.NewFirebaseClient(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase auth", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseClient)

	var gate handlers.IdentityGate
	if key := strings.TrimSpace(cfg.Firebase.WebAPIKey); key != "" {
		passwords, err := auth.NewPasswordClient(ctx, key)
		if err != nil {
			logger.Fatal("failed to initialise password sign-in", zap.Error(err))
		}
		provider, err := identity.NewFirebaseProvider(passwords, firebaseClient)
		if err != nil {
			logger.Fatal("failed to initialise identity provider", zap.Error(err))
		}
		identityGate, err := identity.NewGate(identity.GateDeps{
			Provider: provider,
			Logger:   observability.EventLogger(logger.Named("identity")),
		})
		if err != nil {
			logger.Fatal("failed to initialise identity gate", zap.Error(err))
		}
		gate = identityGate
	} else {
		logger.Warn("firebase web api key not configured; sign-in endpoints disabled")
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(2)
	go func() {
		defer sweepWG.Done()
		cartRegistry.Run(sweepCtx, registrySweepInterval)
	}()
	go func() {
		defer sweepWG.Done()
		checkoutRegistry.Run(sweepCtx, registrySweepInterval)
	}()

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		session.Middleware(sessionManager),
		authenticator.OptionalFirebaseAuth(),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthCheck("firestore", firestoreProvider),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cartRegistry).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(checkoutRegistry,
			handlers.WithSubmitTimeout(cfg.Checkout.SubmitTimeout),
		).Routes),
		handlers.WithAuthRoutes(handlers.NewAuthHandlers(gate, handlers.WithCheckoutForms(checkoutRegistry)).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(history).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening", zap.String("environment", cfg.Security.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	sweepCancel()
	sweepWG.Wait()
	cartRegistry.Close()

	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("outbound messages still in flight at shutdown", zap.Error(err))
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, err := config.Lookup(key)
		if err != nil {
			return ""
		}
		return value
	}

	project := lookup("SECURITY_SECRETS_PROJECT")
	if project == "" {
		project = lookup("FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("SECURITY_SECRETS_FALLBACK")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newSessionManager builds the cookie codec. Local runs without configured keys
// get random ones, so sessions do not survive a restart.
func newSessionManager(cfg config.Config, logger *zap.Logger) (*session.Manager, error) {
	hashKey := []byte(cfg.Session.HashKey)
	blockKey := []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 {
		if cfg.Security.Environment != "local" {
			return nil, errors.New("session hash key is required outside local")
		}
		logger.Warn("session keys not configured; generating ephemeral keys")
		hashKey = securecookie.GenerateRandomKey(32)
		if len(blockKey) == 0 {
			blockKey = securecookie.GenerateRandomKey(32)
		}
	}
	return session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.CookieSecure,
		Lifetime:     cfg.Session.Lifetime,
		IdleTimeout:  cfg.Session.IdleTimeout,
	})
}

// newOpener publishes order messages to Pub/Sub when a topic is configured and
// otherwise writes them to the log.
func newOpener(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Opener, func(), error) {
	topicName := strings.TrimSpace(cfg.PubSub.OrderMessagesTopic)
	if topicName == "" {
		logger.Info("no order message topic configured; logging outbound messages")
		return notify.NewLogOpener(logger.Named("notify")), func() {}, nil
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	} else if credentialsFile := strings.TrimSpace(cfg.Firebase.CredentialsFile); credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: create client: %w", err)
	}
	topic := client.Topic(topicName)
	opener, err := notify.NewPubSubOpener(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return opener, closeFn, nil
}
