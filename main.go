package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"encloseai/internal/apikey"
	"encloseai/internal/checkout"
	"encloseai/internal/config"
	"encloseai/internal/db"
	"encloseai/internal/http/handlers"
	appmw "encloseai/internal/http/middleware"
	"encloseai/internal/paymentlink"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.KeySalt == "" {
		log.Printf("warning: APP_KEY_SALT is empty; set it before issuing production API keys")
	}

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}

	db.StartRetentionWorker(sqlDB, cfg.WebhookRetentionDays)

	handlers.InitPrometheusMetrics()

	users := db.NewUserStore(sqlDB)
	keyStore := db.NewKeyStore(sqlDB)
	linkStore := db.NewLinkStore(sqlDB)
	idemStore := db.NewIdempotencyStore(sqlDB)
	webhookStore := db.NewWebhookStore(sqlDB)

	keys := apikey.NewManager(keyStore, apikey.NewHasher(cfg.KeySalt))
	provider := checkout.NewStripeProvider(cfg.Stripe)
	links := paymentlink.NewService(linkStore, idemStore, users, provider, cfg.LinkBaseURL)

	session := appmw.SessionAuth(users, cfg)
	bearer := appmw.BearerAuth(keys, handlers.ObserveKeyVerification)

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	// Public surface.
	r.GET("/pay/{id}", handlers.ResolvePaymentLink(links, handlers.ObserveCheckoutSession))
	r.POST("/v1/stripe/webhook", handlers.StripeWebhook(webhookStore, users, cfg, handlers.ObserveWebhookEvent))

	// Session-authenticated management surface.
	r.POST("/login", handlers.Login(users))
	r.POST("/logout", handlers.Logout())
	r.POST("/admin/users", session(handlers.CreateUser(users)))
	r.POST("/settings/password", session(handlers.ChangePasswordSelf(users, cfg)))
	r.POST("/settings/stripe-account", session(handlers.SetStripeAccount(users)))

	r.POST("/v1/keys", session(handlers.CreateAPIKey(keys)))
	r.GET("/v1/keys", session(handlers.ListAPIKeys(keys)))
	r.POST("/v1/keys/{id}/revoke", session(handlers.RevokeAPIKey(keys)))
	r.GET("/v1/webhook-events", session(handlers.ListWebhookEvents(webhookStore)))

	// Programmatic surface (API key bearer auth). Link creation is also
	// reachable from the dashboard session.
	r.GET("/v1/verify", bearer(handlers.VerifyKey()))
	r.POST("/v1/payment-links", bearer(handlers.CreatePaymentLink(links, handlers.ObservePaymentLinkCreated)))
	r.GET("/v1/payment-links", bearer(handlers.ListPaymentLinks(links)))
	r.POST("/v1/dashboard/payment-links", session(handlers.CreatePaymentLink(links, handlers.ObservePaymentLinkCreated)))
	r.GET("/v1/dashboard/payment-links", session(handlers.ListPaymentLinks(links)))
	r.GET("/v1/metrics", bearer(handlers.OwnerMetricsHandler()))

	handler := handlers.RequestLogger(r.Handler)

	log.Printf("enclose listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
