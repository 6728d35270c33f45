// Package main runs the dayblocks aggregation service. Collectors
// submit activity events over REST on localhost; the UI reads derived
// blocks, the live snapshot, and exports, and receives change
// notifications over WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goflags "github.com/jessevdk/go-flags"

	"github.com/mkarlsen/dayblocks/cmd/dayblocksd/handlers"
	"github.com/mkarlsen/dayblocks/internal/db"
	"github.com/mkarlsen/dayblocks/internal/export"
	"github.com/mkarlsen/dayblocks/internal/logging"
	"github.com/mkarlsen/dayblocks/internal/timeline"
)

// Options holds the command line configuration.
type Options struct {
	Addr     string `long:"addr" description:"Listen address" default:"127.0.0.1:8177"`
	DataDir  string `long:"data-dir" description:"Directory for the database" default:"./data"`
	LogLevel string `long:"log-level" description:"Minimum log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

func main() {
	var opts Options
	parser := goflags.NewParser(&opts, goflags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logging.Init(os.Stderr, logging.ParseLevel(opts.LogLevel))

	database, err := db.Open(opts.DataDir)
	if err != nil {
		logging.Error("open database", err)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Up(); err != nil {
		logging.Error("migrate database", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	timelineSvc := timeline.NewService(repo)
	exportSvc := export.NewService(timelineSvc)
	hub := NewWSHub()

	mux := buildMux(repo, timelineSvc, exportSvc, hub)

	server := &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logging.Info("listening", map[string]interface{}{"addr": opts.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("serve", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error("shutdown", err)
	}
}

// buildMux wires the full route table.
func buildMux(repo *db.Repository, timelineSvc *timeline.Service, exportSvc *export.Service, hub *WSHub) *http.ServeMux {
	eventH := handlers.NewEventHandler(repo, hub)
	blockH := handlers.NewBlockHandler(timelineSvc)
	reviewH := handlers.NewReviewHandler(repo)
	privacyH := handlers.NewPrivacyHandler(repo, hub)
	settingsH := handlers.NewSettingsHandler(repo, hub)
	trackingH := handlers.NewTrackingHandler(repo, hub)
	dataH := handlers.NewDataHandler(repo, hub)
	exportH := handlers.NewExportHandler(exportSvc)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			eventH.Submit(w, r)
		default:
			eventH.List(w, r)
		}
	})

	mux.HandleFunc("/api/blocks/day", blockH.Day)
	mux.HandleFunc("/api/blocks/today", blockH.Today)
	mux.HandleFunc("/api/timeline/day", blockH.Timeline)
	mux.HandleFunc("/api/now", blockH.Now)

	mux.HandleFunc("/api/reviews/", reviewH.Handle)

	mux.HandleFunc("/api/privacy/rules", privacyH.Rules)
	mux.HandleFunc("/api/privacy/rules/", privacyH.Delete)

	mux.HandleFunc("/api/settings", settingsH.Handle)

	mux.HandleFunc("/api/tracking/pause", trackingH.Pause)
	mux.HandleFunc("/api/tracking/resume", trackingH.Resume)
	mux.HandleFunc("/api/tracking/status", trackingH.Status)

	mux.HandleFunc("/api/data/delete-range", dataH.DeleteRange)
	mux.HandleFunc("/api/data/delete-day", dataH.DeleteDay)
	mux.HandleFunc("/api/data/wipe", dataH.Wipe)

	mux.HandleFunc("/api/export/markdown", exportH.Markdown)
	mux.HandleFunc("/api/export/csv", exportH.CSV)

	mux.HandleFunc("/ws", HandleWebSocket(hub))

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"dayblocksd"}`))
	})

	return mux
}
