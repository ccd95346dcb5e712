package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/support_desk/internal/config"
	"github.com/Skotchmaster/support_desk/internal/es"
	"github.com/Skotchmaster/support_desk/internal/events"
	"github.com/Skotchmaster/support_desk/internal/handlers"
	"github.com/Skotchmaster/support_desk/internal/logging"
	mw "github.com/Skotchmaster/support_desk/internal/middleware"
	"github.com/Skotchmaster/support_desk/internal/realtime"
	"github.com/Skotchmaster/support_desk/internal/repo"
	"github.com/Skotchmaster/support_desk/internal/service"
	"github.com/Skotchmaster/support_desk/internal/service/search"
	"github.com/Skotchmaster/support_desk/internal/tokens"
	httpserver "github.com/Skotchmaster/support_desk/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(configuration.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(configuration.SecretKey, "SECRET_KEY")

	logger := logging.New(configuration.LogLevel)

	db, err := configuration.InitDB()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	engine, err := tokens.NewEngine(configuration.SecretKey, configuration.Algorithm)
	if err != nil {
		log.Fatal(err)
	}

	store := &repo.GormRepo{DB: db}
	authSvc := &service.AuthService{
		Repo:       store,
		Tokens:     engine,
		AccessTTL:  configuration.AccessTokenTTL,
		RefreshTTL: configuration.RefreshTokenTTL,
	}
	ticketSvc := &service.TicketService{
		Repo:     store,
		Strategy: service.StrategyRoundRobin,
	}

	producer := events.NewProducer(configuration.KafkaBrokers)

	var esClient *handlers.SearchHandler
	ticketHandler := &handlers.TicketHandler{
		Svc:      ticketSvc,
		Producer: producer,
		Index:    search.TicketIndex,
	}
	if configuration.ESURL != "" {
		client, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init failed: %v", err)
		}
		ticketHandler.ES = client
		esClient = &handlers.SearchHandler{ES: client, Index: search.TicketIndex}
	}

	hub := realtime.NewHub(logger)

	e := echo.New()
	e.Validator = handlers.NewValidator()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(mw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:   &handlers.AuthHandler{Svc: authSvc, Producer: producer},
		TicketHandler: ticketHandler,
		SearchHandler: esClient,
		ChatHandler: &handlers.ChatHandler{
			Auth:     authSvc,
			Tickets:  ticketSvc,
			Hub:      hub,
			Upgrader: websocket.Upgrader{},
		},
		Auth: mw.NewAuth(authSvc),
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
