package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"entity-links/config"
	"entity-links/providers"
	"entity-links/providers/search"
	"entity-links/services"
	"entity-links/storage"
	"entity-links/tenant"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// tenantMiddleware puts the request tenant into the request context.
func tenantMiddleware(defaultTenant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(tenant.HeaderName)
		if id == "" {
			id = defaultTenant
		}
		c.Request = c.Request.WithContext(tenant.With(c.Request.Context(), id))
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := storage.Open(cfg.DSN())
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to links database.")

	store := storage.NewStore(db)
	logging.Info("Running database auto-migration...")
	if err := store.Migrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	var searcher providers.AuthoritySearcher
	if cfg.AuthoritySearchURL != "" {
		searcher = search.NewFetcher(cfg.AuthoritySearchURL, cfg.AuthoritySearchTimeout, logging)
		logging.Info("Authority search index enabled", zap.String("url", cfg.AuthoritySearchURL))
	} else {
		logging.Warn("AUTHORITY_SEARCH_URL not set, authorities are resolved from the local store only")
	}

	// Setup Services
	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	authorities := services.NewAuthorityService(storage.NewAuthorityRepository(store), searcher, cfg.CentralTenant, logging)
	rules := services.NewRuleService(storage.NewLinkingRuleRepository(store), logging)
	linkRepo := storage.NewInstanceLinkRepository(store)
	app := &api{
		rules:       rules,
		suggestions: services.NewSuggestionService(rules, authorities, metrics, logging),
		links:       services.NewLinkService(linkRepo, store, authorities, metrics, logging),
		reports:     services.NewReportService(linkRepo, store, metrics, logging),
		log:         logging,
	}

	// Seeding
	if cfg.SeedLinkingRules {
		seeded, err := rules.Seed(tenant.With(context.Background(), cfg.DefaultTenant))
		if err != nil {
			logging.Fatal("Seeding linking rules failed", zap.Error(err))
		}
		logging.Info("Linking rules seeded", zap.String("tenant", cfg.DefaultTenant), zap.Int("inserted", seeded))
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.Use(tenantMiddleware(cfg.DefaultTenant))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupRuleRoutes(router, app)
	setupLinkRoutes(router, app)
	setupSuggestionRoutes(router, app)
	setupReportRoutes(router, app)

	// Setup Cron
	if cfg.ReportsEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), storage.S3Settings{
			URL:    cfg.ReportsS3URL,
			Region: cfg.ReportsS3Region,
			Key:    cfg.ReportsS3Key,
			Secret: cfg.ReportsS3Secret,
		})
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		inbox := storage.NewReportInbox(s3Client, cfg.ReportsS3Bucket, cfg.ReportsS3Prefix)
		consumer := services.NewReportConsumer(inbox, app.reports, logging)

		cronScheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		_, err = cronScheduler.AddFunc(cfg.ReportsCronSchedule, func() {
			count, err := consumer.Poll(context.Background())
			if err != nil {
				logging.Error("Report poll failed", zap.Error(err), zap.Int("applied_batches", count))
			} else if count > 0 {
				logging.Info("Report poll completed", zap.Int("applied_batches", count))
			}
		})
		if err != nil {
			logging.Fatal("Invalid REPORTS_CRON_SCHEDULE", zap.Error(err))
		}
		cronScheduler.Start()
		logging.Info("Report inbox polling enabled",
			zap.String("bucket", cfg.ReportsS3Bucket), zap.String("prefix", cfg.ReportsS3Prefix))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
