package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/mind-engage/cms485-trainer/internal/api/http"
	"github.com/mind-engage/cms485-trainer/internal/auth"
	"github.com/mind-engage/cms485-trainer/internal/config"
	"github.com/mind-engage/cms485-trainer/internal/db"
	"github.com/mind-engage/cms485-trainer/internal/metrics"
	"github.com/mind-engage/cms485-trainer/internal/notify"
	"github.com/mind-engage/cms485-trainer/internal/outbox"
	"github.com/mind-engage/cms485-trainer/internal/rbac"
	"github.com/mind-engage/cms485-trainer/internal/report"
	"github.com/mind-engage/cms485-trainer/internal/session"
	"github.com/mind-engage/cms485-trainer/internal/trainer"
	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/httpchi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	catalog, err := loadCatalog(cfg.CasesDir)
	if err != nil {
		log.Fatalf("case catalog: %v", err)
	}

	// --- Learner state ---
	store, err := openStateStore(cfg, dbh)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}
	sessions := session.NewManager(store, nil)
	evictCtx, stopEvictor := context.WithCancel(context.Background())
	defer stopEvictor()
	if cfg.SessionIdleTTL > 0 {
		go sessions.RunEvictor(evictCtx, time.Minute, cfg.SessionIdleTTL)
	}

	// --- Challenge email ---
	mailer, err := notify.NewMailer(ctx, notify.MailerConfig{
		Region:   cfg.AWSRegion,
		From:     cfg.SESFromEmail,
		FromName: cfg.SESFromName,
		To:       cfg.ChallengeEmailTo,
		Debug:    cfg.Debug,
	})
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	notifier := notify.NewNotifier(mailer, 15*time.Second)

	// --- Completion reporting ---
	var repo *outbox.EventRepo
	if cfg.EnableOutbox {
		repo = outbox.NewEventRepo(dbh, cfg.SiteID)
	}
	publisher, err := openPublisher(cfg)
	if err != nil {
		log.Fatalf("event publisher: %v", err)
	}
	defer publisher.Close()

	syncer, err := openGradebook(ctx, cfg, dbh)
	if err != nil {
		log.Fatalf("gradebook: %v", err)
	}

	reporter := report.NewReporter(nil, cfg.DeliveryTimeout)
	svc := trainer.New(catalog, sessions, reporter, notifier, targetsFor(cfg, repo, publisher, syncer))

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)
	admin := auth.Admin{Username: cfg.AdminUser, PasswordHash: cfg.AdminPassHash}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, admin))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Case boards
		pr.With(rbac.Require(rbac.PermCaseView)).Get("/cases", api.ListCasesHandler(svc))
		pr.With(rbac.Require(rbac.PermCaseView)).Get("/cases/{caseID}", api.GetCaseHandler(svc))
		pr.With(rbac.Require(rbac.PermCaseView)).Get("/cases/{caseID}/board", api.GetBoardHandler(svc))
		pr.With(rbac.Require(rbac.PermPlacementEdit)).Put("/cases/{caseID}/placements/{boxID}", api.PlaceChipHandler(svc))
		pr.With(rbac.Require(rbac.PermPlacementEdit)).Delete("/cases/{caseID}/placements/{boxID}", api.RemoveChipHandler(svc))
		pr.With(rbac.Require(rbac.PermPlacementEdit)).Delete("/cases/{caseID}/placements", api.ResetBoardHandler(svc))
		pr.With(rbac.Require(rbac.PermCaseSubmit)).Post("/cases/{caseID}/submit", api.SubmitCaseHandler(svc))

		// Audit exam
		pr.With(rbac.Require(rbac.PermCaseView)).Get("/exams/{examID}", api.GetExamHandler(svc))
		pr.With(rbac.Require(rbac.PermExamSubmit)).Post("/exams/{examID}/submit", api.SubmitExamHandler(svc))

		// Stages and progress
		pr.With(rbac.Require(rbac.PermStageRecord)).Post("/stages/{stageID}/start", api.StartStageHandler(svc))
		pr.With(rbac.Require(rbac.PermStageRecord)).Post("/stages/{stageID}/complete", api.CompleteStageHandler(svc))
		pr.With(rbac.Require(rbac.PermProgressView)).Get("/progress", api.ProgressHandler(svc))
		pr.With(rbac.Require(rbac.PermProgressReset)).Delete("/progress", api.ResetProgressHandler(svc))

		// Completion
		pr.With(rbac.Require(rbac.PermCompletionView)).Get("/completion", api.CompletionHandler(svc))
		pr.With(rbac.Require(rbac.PermCompletionReport)).Post("/completion/report", api.ReportHandler(svc))
		pr.With(rbac.Require(rbac.PermCompletionView)).Get("/completion/report", api.LastReportHandler(svc))
		if repo != nil {
			pr.With(rbac.Require(rbac.PermOutboxPoll)).Get("/outbox", api.OutboxHandler(repo))
		}

		// LTI gradebook passback
		if syncer != nil {
			gb := &httpchi.API{
				Syncer:  syncer,
				Learner: func(r *http.Request) string { return rbac.SubjectFromContext(r.Context()) },
				Score: func(ctx context.Context, learnerID string) (int, error) {
					return svc.Completion(ctx, learnerID).OverallScore, nil
				},
			}
			pr.With(rbac.Require(rbac.PermLTILaunch)).Group(gb.Routes)
		}

		// Admin
		pr.With(rbac.Require(rbac.PermProgressResetAny)).
			Delete("/admin/learners/{learnerID}/progress", api.AdminResetProgressHandler(svc))
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s, state=%s, cases=%d)",
			cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.StateBackend, len(catalog.Cases()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()
	<-stop.Done()

	log.Println("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	reporter.Wait()
	notifier.Wait()
}
