package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/campuslabs/examportal/internal/api/http"
	authmw "github.com/campuslabs/examportal/internal/auth/middleware"
	"github.com/campuslabs/examportal/internal/config"
	"github.com/campuslabs/examportal/internal/db"
	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/grading"
	"github.com/campuslabs/examportal/internal/identity"
	"github.com/campuslabs/examportal/internal/rbac"
	"github.com/campuslabs/examportal/internal/reports"
	syncx "github.com/campuslabs/examportal/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	grader := grading.NewGrader()
	events := syncx.NewEventRepo(dbh, "")
	svc := exam.NewService(store, grader,
		exam.WithLateWindow(cfg.LateWindow),
		exam.WithEvents(events),
	)
	reporting := reports.NewEngine(store, grader)
	ids := identity.NewService(dbh)
	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", api.RegisterHandler(ids))
	r.Post("/auth/login", api.LoginHandler(ids, authSvc))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))

		// Exam authoring (teacher)
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(svc))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/publish", api.PublishExamHandler(svc))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/cancel", api.CancelExamHandler(svc))
		pr.With(rbac.Require("exam:delete_own")).
			Delete("/exams/{examID}", api.DeleteExamHandler(svc))
		pr.With(rbac.Require("exam:create")).
			Post("/exams/{examID}/questions", api.AttachQuestionHandler(svc))
		pr.With(rbac.Require("exam:create")).
			Delete("/exams/{examID}/questions/{questionID}", api.DetachQuestionHandler(svc))

		// Question bank (teacher)
		pr.With(rbac.Require("question:create")).
			Post("/questions", api.CreateQuestionHandler(svc))
		pr.With(rbac.Require("question:view")).
			Get("/questions", api.ListQuestionsHandler(store))

		// Exams (student/teacher)
		pr.With(rbac.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/remaining", api.RemainingTimeHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc, store))
		pr.With(rbac.Require("attempt:view-all")).
			Post("/attempts/{attemptID}/abandon", api.AbandonAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.Require("result:view-own")).
			Get("/exams/{examID}/result", api.MyResultHandler(store))

		// Grading preview (teacher)
		pr.With(rbac.Require("grade:preview")).
			Post("/grade/preview", api.GradePreviewHandler(svc))

		// Offline replay feed (admin)
		pr.With(rbac.Require("sync:read")).
			Get("/sync/events", api.SyncEventsHandler(events))

		// Reports (teacher/admin)
		pr.With(rbac.Require("reports:view")).
			Get("/reports/performance", api.PerformanceReportHandler(reporting))
		pr.With(rbac.Require("reports:view")).
			Get("/reports/attendance/{examID}", api.AttendanceReportHandler(reporting))
		pr.With(rbac.Require("reports:view")).
			Get("/reports/questions/{examID}", api.QuestionAnalysisHandler(reporting))
	})

	log.Printf("examportal gateway listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
