package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/staffdesk/apiserver/config"
	"github.com/staffdesk/apiserver/internal/db"
	"github.com/staffdesk/apiserver/internal/handlers"
	"github.com/staffdesk/apiserver/internal/mailer"
	"github.com/staffdesk/apiserver/internal/mq"
	"github.com/staffdesk/apiserver/internal/reset"
	"github.com/staffdesk/apiserver/internal/services"
	"github.com/staffdesk/apiserver/internal/storage"
	"github.com/staffdesk/apiserver/internal/store"
	"github.com/staffdesk/apiserver/internal/token"
	"github.com/staffdesk/apiserver/types"
)

// Server wraps the HTTP server and its backing connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	resets     *reset.Registry
	broker     *mq.MQ
	logger     *logrus.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}
	issuer := token.NewIssuer(jwtSecret)

	resets, err := reset.NewRegistry(cfg.Redis)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := newBroker(ctx, cfg.MQ)
	if err != nil {
		_ = resets.Close()
		_ = dbConn.Close()
		return nil, err
	}

	documents, err := newDocumentStorage(ctx, cfg.Storage)
	if err != nil {
		_ = broker.Close()
		_ = resets.Close()
		_ = dbConn.Close()
		return nil, err
	}
	if err := documents.EnsureBucket(ctx); err != nil {
		_ = broker.Close()
		_ = resets.Close()
		_ = dbConn.Close()
		return nil, err
	}

	principalRepo := store.NewPrincipalRepository(dbConn)
	contractRepo := store.NewContractRepository(dbConn)

	principalService := services.NewPrincipalService(principalRepo)
	contractService := services.NewContractService(contractRepo)

	mail := mailer.New(broker)
	authMiddleware := handlers.RequireAuth(issuer)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/admins", func(r chi.Router) {
		handlers.AuthRouter(r, types.RoleAdmin, principalService, issuer, resets, mail, logger)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.AuthRouter(r, types.RoleUser, principalService, issuer, resets, mail, logger)
	})
	router.Route("/contracts", func(r chi.Router) {
		handlers.ContractRouter(r, contractService, documents, authMiddleware, logger)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		resets:     resets,
		broker:     broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting server")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.resets != nil {
		_ = s.resets.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	return s.httpServer.Close()
}

func newBroker(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func newDocumentStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		backend, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
