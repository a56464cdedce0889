package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/config"
	httptransport "github.com/example/club-crm/internal/http"
	"github.com/example/club-crm/internal/logging"
	"github.com/example/club-crm/internal/persistence/sqlite"
	"github.com/example/club-crm/internal/persistence/sqlite/migration"
	"github.com/example/club-crm/internal/recurrence"
)

const feedProductID = "-//Club CRM//Meetings//EN"

func main() {
	if os.Getenv("CRM_SKIP_DOTENV") == "" {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
	}

	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx, logger); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	app, err := newApp(cfg, storage, time.Now, logger)
	if err != nil {
		logger.Error("failed to assemble services", "error", err)
		os.Exit(1)
	}

	if cfg.AdminEmail != "" {
		created, err := app.users.EnsureAdmin(ctx, application.UserInput{
			Email:       cfg.AdminEmail,
			DisplayName: "Administrator",
			Password:    cfg.AdminPassword,
			IsAdmin:     true,
		})
		if err != nil {
			logger.Error("failed to provision administrator", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("administrator provisioned", "email", cfg.AdminEmail)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("club CRM API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// app holds the assembled services next to the HTTP handler serving them.
type app struct {
	users   *application.UserService
	auth    *application.AuthService
	handler http.Handler
}

func newApp(cfg config.Config, storage *sqlite.Storage, now func() time.Time, logger *slog.Logger) (*app, error) {
	level, err := checkin.ParseLevel(cfg.QRLevel)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }

	issuer := checkin.NewIssuer(checkin.DefaultPolicy(loc), checkin.NewQREncoder(cfg.QRSize, cfg.QRMargin, level), cfg.AppURL, logger)
	expander := calendar.NewExpander(recurrence.NewEngine(loc), issuer)

	memberRepo := newMemberRepositoryAdapter(storage.Members)
	meetingRepo := newMeetingRepositoryAdapter(storage.Meetings)
	attendanceRepo := newAttendanceRepositoryAdapter(storage.Attendance)
	userRepo := newUserRepositoryAdapter(storage.Users)
	sessionRepo := newSessionRepositoryAdapter(storage.Sessions, cfg.SessionSecret)
	credentialStore := newCredentialStoreAdapter(storage.Users)

	memberService := application.NewMemberServiceWithLogger(memberRepo, idGenerator, now, logger)
	meetingService := application.NewMeetingServiceWithLogger(meetingRepo, expander, idGenerator, now, logger)
	attendanceService := application.NewAttendanceService(application.AttendanceServiceDeps{
		Records:     attendanceRepo,
		Members:     memberRepo,
		Meetings:    meetingRepo,
		Expander:    expander,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	userService := application.NewUserServiceWithLogger(userRepo, application.NewArgon2idHasher(application.DefaultArgon2idParams), idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:    httptransport.NewAuthHandler(authService, logger),
		Users:   httptransport.NewUserHandler(userService, logger),
		Members: httptransport.NewMemberHandler(memberService, logger),
		Meetings: httptransport.NewMeetingHandler(meetingService, httptransport.MeetingHandlerConfig{
			Location: loc,
			Feed: calendar.FeedOptions{
				Name:      "Club meetings",
				ProductID: feedProductID,
				Domain:    feedDomain(cfg.AppURL),
			},
		}, logger),
		Attendance: httptransport.NewAttendanceHandler(attendanceService, loc, logger),
		Session:    httptransport.RequireSession(authService, logger),
		Public:     httptransport.PublicCORS(),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{
		users:   userService,
		auth:    authService,
		handler: router,
	}, nil
}

func feedDomain(appURL string) string {
	parsed, err := url.Parse(appURL)
	if err != nil || parsed.Hostname() == "" {
		return "localhost"
	}
	return parsed.Hostname()
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
