package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekit.org/internal/audit"
	"gatekit.org/internal/auth"
	"gatekit.org/internal/config"
	"gatekit.org/internal/httpapi"
	"gatekit.org/internal/ledger"
	"gatekit.org/internal/migrate"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/store/pg"
	"gatekit.org/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

// nullCredentialStore serves the DSN-less development mode: the routing
// layer runs but every login fails uniformly.
type nullCredentialStore struct{}

func (nullCredentialStore) FindByIdentifier(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, auth.ErrNotFound
}

func (nullCredentialStore) Find(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, auth.ErrNotFound
}

func (nullCredentialStore) VerifySecret(context.Context, string, string) (bool, error) {
	return false, nil
}

func main() {
	configPath := flag.String("config", os.Getenv("GATEKIT_CONFIG"), "path to YAML config file")
	runMigrations := flag.Bool("migrate", false, "apply schema migrations before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		db        *sql.DB
		credStore auth.CredentialStore = nullCredentialStore{}
		led       ledger.Ledger        = ledger.NewMemory()
		admin     httpapi.AdminStore
	)
	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		credStore = store
		led = store
		admin = store

		if *runMigrations {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := migrate.Up(ctx, db); err != nil {
				cancel()
				log.Fatalf("migrate: %v", err)
			}
			cancel()
		}
	} else if *runMigrations {
		log.Fatal("migrate: database dsn is not configured")
	}

	codec, err := token.New(cfg.Auth.SigningSecret,
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithAccessTTL(cfg.AccessTokenTTL()),
		token.WithRefreshTTL(cfg.RefreshTokenTTL()),
		token.WithLeeway(cfg.ClockSkewTolerance()),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	engine, err := auth.NewService(credStore, led, codec,
		auth.WithEventSink(audit.Sink()),
		auth.WithBumpOnReuse(cfg.BumpOnReuse()),
	)
	if err != nil {
		log.Fatalf("auth engine: %v", err)
	}

	api := httpapi.New(engine, admin, httpapi.ReadyProbe{DB: db}, cfg.RateLimit, version)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	// Background reclaim of expired revocation entries. Correctness never
	// depends on it; it only keeps the table small.
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	if store, ok := led.(*pg.Store); ok {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-janitorCtx.Done():
					return
				case <-ticker.C:
					if n, err := store.DeleteExpired(janitorCtx); err == nil && n > 0 {
						log.Printf("reclaimed %d expired revocation entries", n)
					}
				}
			}
		}()
	}

	log.Printf("Starting gatekit-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
