// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archon-governance/three-fates/pkg/config"
	"github.com/archon-governance/three-fates/pkg/database"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/events/memwriter"
	"github.com/archon-governance/three-fates/pkg/events/pgwriter"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/petition"
	"github.com/archon-governance/three-fates/pkg/scheduler"
	"github.com/archon-governance/three-fates/pkg/scheduler/memscheduler"
	"github.com/archon-governance/three-fates/pkg/server"
	"github.com/archon-governance/three-fates/pkg/store"
	"github.com/archon-governance/three-fates/pkg/store/memstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.ValidateForDevelopment(); err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	logger := log.New(log.Writer(), "[ThreeFates] ", log.LstdFlags)

	var (
		petitionStore     store.PetitionStore
		ackStore          store.AcknowledgmentStore
		referralStore     store.ReferralStore
		notificationStore petition.NotificationPreferencesStore
		eventWriter       events.Writer
		schedulerStore    scheduler.Store
	)

	if cfg.DatabaseURL != "" {
		dbClient, err := database.NewClient(cfg)
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatalf("failed to connect to database: %v", err)
			}
			logger.Printf("database connection failed, falling back to in-memory stores: %v", err)
		} else {
			if err := dbClient.MigrateUp(context.Background()); err != nil {
				log.Fatalf("failed to run database migrations: %v", err)
			}
			repos := database.NewRepositories(dbClient, logger)
			petitionStore = repos.Petitions
			ackStore = repos.Acknowledgments
			referralStore = repos.Referrals
			notificationStore = repos.NotificationPrefs
			eventWriter = pgwriter.New(dbClient.DB())
			schedulerStore = repos.Scheduler
			logger.Println("connected to Postgres, running migrations, using durable stores")
		}
	}

	if petitionStore == nil {
		logger.Println("database unavailable, running with in-memory stores (not durable)")
		petitionStore = memstore.New()
		ackStore = memstore.NewAcknowledgmentStore()
		referralStore = memstore.NewReferralStore()
		notificationStore = petition.NewMemNotificationPreferencesStore()
		eventWriter = memwriter.New()
		schedulerStore = memscheduler.New()
	}

	registry := prometheus.NewRegistry()
	haltGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "three_fates_halted",
		Help: "1 if the governance engine is currently halted, 0 otherwise.",
	})
	registry.MustRegister(haltGauge)
	halt := haltgate.New(haltGauge)
	metrics := petition.NewMetrics(registry)

	realms, err := petition.LoadRealmRegistry(cfg.RealmsFilePath)
	if err != nil {
		logger.Printf("failed to load realm registry from %s, falling back to a single default realm: %v", cfg.RealmsFilePath, err)
		realms = petition.NewStaticRealmRegistry("governance")
	}

	sessions := petition.NewMemSessionLookup()
	notifier := petition.NoopNotifier{}

	coordinator := petition.NewCoordinator(petitionStore, eventWriter, halt, metrics)
	submission := petition.NewSubmissionService(petitionStore, eventWriter, halt, realms, notificationStore, notifier, coordinator, logger)
	ackExec := petition.NewAcknowledgmentExecutor(
		petitionStore, ackStore, eventWriter, coordinator, sessions, notifier,
		time.Duration(cfg.MinDwellTimeSeconds)*time.Second, logger,
	)
	escExec := petition.NewAutoEscalationExecutor(petitionStore, eventWriter, coordinator, halt, logger)
	cosign := petition.NewCoSignService(petitionStore, escExec, halt, logger)
	queue := petition.NewEscalationQueue(petitionStore, halt)
	orphanMonitor := petition.NewOrphanMonitor(petitionStore, eventWriter, nil, time.Duration(cfg.OrphanThresholdHours)*time.Hour, logger)

	sched := scheduler.New(schedulerStore, halt)
	refExec := petition.NewReferralExecutor(
		petitionStore, referralStore, eventWriter, coordinator, sched, ackExec,
		time.Duration(cfg.ReferralCycleLengthSeconds)*time.Second, logger,
	)
	_ = refExec // handler registration happens inside NewReferralExecutor

	go runSchedulerLoop(context.Background(), sched, logger)
	go runOrphanScanLoop(context.Background(), orphanMonitor, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if halt.IsHalted() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"halted","reason":"` + halt.Reason() + `"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	petitionHandlers := server.NewPetitionHandlers(petitionStore, submission, cosign, logger)
	mux.HandleFunc("/v1/petitions", petitionHandlers.HandleSubmit)
	mux.HandleFunc("/v1/petitions/", routePetitionByID(petitionHandlers))

	kingHandlers := server.NewKingHandlers(petitionStore, queue, ackExec, logger)
	mux.HandleFunc("/v1/kings/escalations/", routeEscalationByID(kingHandlers))
	mux.HandleFunc("/v1/kings/", routeKingQueue(kingHandlers))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Printf("Three-Fates petition governance engine listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown error: %v", err)
	}
	logger.Println("stopped")
}

// routePetitionByID dispatches "/v1/petitions/{id}[/cosign|/withdraw]" by
// its trailing path segment, in the teacher's manual-TrimPrefix style.
func routePetitionByID(h *server.PetitionHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case hasSuffixSegment(r.URL.Path, "cosign"):
			h.HandleCoSign(w, r)
		case hasSuffixSegment(r.URL.Path, "withdraw"):
			h.HandleWithdraw(w, r)
		default:
			h.HandleGet(w, r)
		}
	}
}

func routeEscalationByID(h *server.KingHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hasSuffixSegment(r.URL.Path, "acknowledge") {
			h.HandleAcknowledge(w, r)
			return
		}
		h.HandleGetDecisionPackage(w, r)
	}
}

func routeKingQueue(h *server.KingHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hasSuffixSegment(r.URL.Path, "escalations") {
			h.HandleGetQueue(w, r)
			return
		}
		http.NotFound(w, r)
	}
}

func hasSuffixSegment(path, segment string) bool {
	if len(path) < len(segment) {
		return false
	}
	return path[len(path)-len(segment):] == segment
}

// runSchedulerLoop drains due jobs at a fixed interval until ctx is done.
func runSchedulerLoop(ctx context.Context, sched *scheduler.Scheduler, logger *log.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sched.RunOnce(ctx, time.Now().UTC(), 50)
			if err != nil {
				logger.Printf("scheduler run failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("scheduler dispatched %d due job(s)", n)
			}
		}
	}
}

// runOrphanScanLoop periodically scans for petitions stuck in RECEIVED.
func runOrphanScanLoop(ctx context.Context, monitor *petition.OrphanMonitor, logger *log.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := monitor.Detect(ctx)
			if err != nil {
				logger.Printf("orphan scan failed: %v", err)
				continue
			}
			if result.Count > 0 {
				logger.Printf("orphan scan found %d stuck petition(s), oldest age %s", result.Count, result.OldestAge)
			}
		}
	}
}
