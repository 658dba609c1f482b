package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"procurement_system/internal/engine"
	"procurement_system/internal/generator"
	"procurement_system/internal/http-server/handlers/api/ping"
	"procurement_system/internal/http-server/handlers/api/po"
	quoteapi "procurement_system/internal/http-server/handlers/api/quote"
	responseapi "procurement_system/internal/http-server/handlers/api/response"
	"procurement_system/internal/http-server/handlers/api/winners"
	"procurement_system/internal/http-server/middleware/ratelimit"
	"procurement_system/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := godotenv.Load()
	if err != nil {
		log.Error("Failed to load .env", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
	}

	connStr := os.Getenv("POSTGRES_CONN")
	storage, err := postgres.New(connStr)
	if err != nil {
		log.Error("Failed to connect to postgresql", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
	}

	eng := engine.New(log, storage)
	gen := generator.New(log, storage, generator.LogNotifier{Log: log}, os.Getenv("PO_NUMBER_PREFIX"))

	rps := envFloat("RATE_LIMIT_RPS", 50)
	burst := envInt("RATE_LIMIT_BURST", 100)

	router := chi.NewRouter()
	router.Use(ratelimit.New(rps, burst))

	router.Get("/api/quotes", quoteapi.NewGetQuotes(log, storage))
	router.Route("/api", func(r chi.Router) {
		r.Get("/ping", ping.New(log))
		r.Route("/quotes", func(r chi.Router) {
			r.Post("/new", quoteapi.NewPostQuote(log, storage))
			r.Get("/{quoteId}/status", quoteapi.NewGetQuoteStatus(log, storage))
			r.Put("/{quoteId}/status", quoteapi.NewPutQuoteStatus(log, storage))
			r.Post("/{quoteId}/items", quoteapi.NewPostQuoteItem(log, storage))
			r.Post("/{quoteId}/suppliers", quoteapi.NewPostInvitation(log, storage))
			r.Get("/{quoteId}/suppliers", quoteapi.NewGetInvitations(log, storage))
			r.Get("/{quoteId}/comparison", winners.NewGetComparison(log, eng))
			r.Get("/{quoteId}/ties", winners.NewGetTies(log, eng))
			r.Post("/{quoteId}/winners/auto", winners.NewPostAutoSelect(log, eng))
			r.Post("/{quoteId}/purchase-orders/validate", po.NewPostValidate(log, gen))
			r.Post("/{quoteId}/purchase-orders/generate", po.NewPostGenerate(log, gen))
		})
		r.Route("/items", func(r chi.Router) {
			r.Put("/{itemId}/response", responseapi.NewPutResponse(log, storage))
			r.Get("/{itemId}/responses", responseapi.NewGetItemResponses(log, storage))
			r.Put("/{itemId}/winner", winners.NewPutManualWinner(log, eng))
			r.Put("/{itemId}/winner/tie", winners.NewPutResolveTie(log, eng))
		})
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("failed to start the server")
		}
	}()

	log.Info("starting server", slog.Attr{Key: "addr", Value: slog.StringValue(addr)})
	<-done
	log.Info("server stopped")
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
