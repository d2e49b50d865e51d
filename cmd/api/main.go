package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/prepprhq/preppr-backend/internal/auth"
	"github.com/prepprhq/preppr-backend/internal/cart"
	"github.com/prepprhq/preppr-backend/internal/config"
	"github.com/prepprhq/preppr-backend/internal/events"
	"github.com/prepprhq/preppr-backend/internal/httpx"
	kafkax "github.com/prepprhq/preppr-backend/internal/kafka"
	"github.com/prepprhq/preppr-backend/internal/market"
	"github.com/prepprhq/preppr-backend/internal/metrics"
	"github.com/prepprhq/preppr-backend/internal/postgres"
	"github.com/prepprhq/preppr-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderPlaced, 1024)
	orderProd.Start(ctx)
	lineProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicLineStatus, 1024)
	lineProd.Start(ctx)

	// Core wiring
	policy, err := cart.PolicyByName(cfg.CheckoutPolicy)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("checkout policy: %s", policy.Name())

	store := &cart.PGStore{DB: db, LockTimeout: cfg.LockTimeout}
	svc := cart.NewService(store, policy)
	svc.Events = &events.Emitter{
		OrderProducer: orderProd,
		LineProducer:  lineProd,
		ServiceName:   cfg.ServiceName,
	}

	issuer := &auth.TokenIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	m := metrics.NewServerMetrics("api")

	router := httpx.NewRouter(m)
	ah := &httpx.AuthHandler{Users: &auth.Repo{DB: db}, Issuer: issuer}
	mh := &httpx.MarketHandler{Stalls: &market.Repo{DB: db}, Redis: rdb}
	ch := &httpx.CartHandler{Service: svc, Metrics: m}

	ah.Register(router)
	mh.Register(router)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		ah.Protected(r)
		mh.Protected(r)
		ch.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderProd.Close()
	lineProd.Close()
	orderProd.WaitClosed()
	lineProd.WaitClosed()
}
