package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"zaop.zip/paylink/internal/auth/flow"
	"zaop.zip/paylink/internal/auth/session"
	"zaop.zip/paylink/internal/auth/store"
	"zaop.zip/paylink/internal/auth/token"
	"zaop.zip/paylink/internal/config"
	"zaop.zip/paylink/internal/db"
	"zaop.zip/paylink/internal/logging"
	"zaop.zip/paylink/internal/platform"
	"zaop.zip/paylink/internal/receipts"
	"zaop.zip/paylink/internal/retailer"
	"zaop.zip/paylink/internal/version"
	"zaop.zip/paylink/internal/wbw"
	"zaop.zip/paylink/internal/web/handlers"
	"zaop.zip/paylink/internal/web/middleware"
)

func main() {
	configPath := flag.String("config", "paylink.yaml", "path to the configuration file")
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auth subsystem
	credStore := store.New(database)
	if recs, err := credStore.ListAll(); err == nil {
		for _, rec := range recs {
			log.Printf("found linked account %s/%d", rec.Platform, rec.AccountID)
		}
	}
	sessions := session.NewRegistry(credStore)
	pending := flow.NewTracker()
	initiator := flow.NewInitiator(sessions, pending, cfg.ResolveCallbackURL())
	callbackRouter := flow.NewRouter(sessions, pending)
	gate := token.NewGate(sessions)

	// Domain clients
	receiptRepo := receipts.NewRepository(database)
	retailers := map[platform.Platform]retailer.Client{
		platform.Lidl:  retailer.NewLidlClient(),
		platform.Appie: retailer.NewAppieClient(),
		platform.Jumbo: retailer.NewJumboClient(),
	}
	wbwClient := wbw.NewClient()

	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public: health and the provider redirect target. The callback must stay
	// unauthenticated because the browser is redirected here by the provider.
	r.Get("/healthz", handlers.HealthHandler())
	r.Get("/auth/callback", handlers.CallbackHandler(callbackRouter))

	// Everything else requires the local API key.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(database))

		// Account linking
		r.Post("/auth/{platform}/login", handlers.LoginHandler(initiator))
		r.Get("/accounts", handlers.AccountsHandler(credStore))
		r.Delete("/accounts/{platform}/{id}", handlers.UnlinkHandler(sessions))
		r.Post("/accounts/{platform}/{id}/refresh", handlers.AccountRefreshHandler(gate))

		// Receipts
		r.Get("/receipts", handlers.ReceiptsHandler(receiptRepo))
		r.Get("/receipts/{id}", handlers.ReceiptHandler(receiptRepo))
		r.Put("/receipts/{id}/items", handlers.ReceiptItemsHandler(receiptRepo))
		r.Post("/receipts/sync", handlers.SyncReceiptsHandler(gate, credStore, receiptRepo, retailers))

		// WieBetaaltWat
		r.Post("/wbw/login", handlers.WbwLoginHandler(wbwClient, sessions, database))
		r.Post("/wbw/sync", handlers.WbwSyncHandler(wbwClient, sessions, database))
		r.Get("/wbw/lists", handlers.WbwListsHandler(database))
		r.Get("/wbw/balances", handlers.WbwBalancesHandler(wbwClient, sessions))
		r.Post("/wbw/lists/{listId}/expenses", handlers.SubmitExpenseHandler(wbwClient, sessions, receiptRepo, database))

		// API key management
		r.Get("/config/apikey", handlers.GetAPIKeyHandler(database))
		r.Post("/config/apikey/regenerate", handlers.RegenerateAPIKeyHandler(database))
	})

	log.Printf("paylinkd %s starting on http://%s", version.Version, cfg.Addr())
	log.Printf("authorization callback: %s", cfg.ResolveCallbackURL())

	if err := http.ListenAndServe(cfg.Addr(), r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
