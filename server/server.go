package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"soundscene/cache"
	"soundscene/config"
	"soundscene/core/analysis"
	"soundscene/core/auth"
	"soundscene/core/ingest"
	"soundscene/core/persist"
	"soundscene/core/pricing"
	"soundscene/core/prompt"
	"soundscene/core/render"
	"soundscene/core/resource"
	"soundscene/core/workflow"
	"soundscene/db"
	"soundscene/logger"
	"soundscene/repository"
	"soundscene/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(getEnvLevel()),
		OutputPath: "logs/soundscene.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	auth.InitJWT(cfg.JWTSecret)

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	projectRepo := repository.NewMySQLProjectRepository(db.DB)
	analysisRepo := repository.NewMySQLAnalysisRepository(db.DB)
	snapshotRepo, err := repository.NewGormSnapshotRepository(db.GormDB)
	if err != nil {
		logger.Fatal("failed to set up snapshot repository", logger.ErrorField(err))
	}

	audioStore := storage.NewAudioStore(cfg)
	pricer := pricing.NewEngine(pricing.NewClient(cfg.PricingServiceURL), 0)
	analysisClient := analysis.NewClient(cfg.AnalysisServiceURL)
	renderClient := render.NewClient(cfg.RenderServiceURL)
	promptClient := prompt.NewClient(cfg.PromptServiceURL)

	allocator, err := resource.NewTempFileAllocator(filepath.Join(os.TempDir(), "soundscene-handles"))
	if err != nil {
		logger.Fatal("failed to set up media handle allocator", logger.ErrorField(err))
	}

	registry := workflow.NewRegistry(func(userID int64) workflow.ManagerDeps {
		return workflow.ManagerDeps{
			Projects: projectRepo,
			Tracks:   trackRepo,
			Analysis: analysisRepo,
			Store: persist.NewStore(
				persist.RedisCache{},
				&persist.RemoteStore{Projects: projectRepo, Snapshots: snapshotRepo},
				persist.NewUDPSink(cfg.AutosaveSinkAddr),
				cfg.AutosaveDebounce,
			),
			Pricer:       pricer,
			Analyzer:     analysis.NewOrchestrator(analysisClient),
			Handles:      resource.NewManager(allocator, cfg.HandleRevokeGrace),
			StateCache:   cache.StateCacheAdapter{},
			Descriptions: cache.DescriptionStoreAdapter{},
			Resolver:     audioStore,
			Renderer:     renderClient,
			Locator: func(step int, projectID string) {
				logger.Debug("locator update",
					logger.Int("step", step), logger.String("projectId", projectID))
			},
			LocatorEvery: cfg.LocatorThrottle,
		}
	})

	apiHandler := NewAPIHandler(cfg, userRepo, trackRepo, snapshotRepo, registry, audioStore, promptClient)

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Auth endpoints
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Project lifecycle
	router.HandleFunc("/api/projects", apiHandler.AuthMiddleware(apiHandler.CreateProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}", apiHandler.AuthMiddleware(apiHandler.GetProjectHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteProjectHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/projects/{id}/submit", apiHandler.AuthMiddleware(apiHandler.SubmitProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/autosave/flush", apiHandler.AuthMiddleware(apiHandler.FlushHandler)).Methods(http.MethodPost)

	// Track collection
	router.HandleFunc("/api/projects/{id}/tracks", apiHandler.AuthMiddleware(apiHandler.UploadTracksHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/tracks", apiHandler.AuthMiddleware(apiHandler.DeleteTracksHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/projects/{id}/tracks/select", apiHandler.AuthMiddleware(apiHandler.SelectTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/tracks/reorder", apiHandler.AuthMiddleware(apiHandler.ReorderTracksHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/tracks/{trackId}/duration", apiHandler.AuthMiddleware(apiHandler.UpdateDurationHandler)).Methods(http.MethodPut)

	// Workflow steps and content
	router.HandleFunc("/api/projects/{id}/description/mode", apiHandler.AuthMiddleware(apiHandler.SetModeHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}/description", apiHandler.AuthMiddleware(apiHandler.EditDescriptionHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}/settings", apiHandler.AuthMiddleware(apiHandler.UpdateSettingsHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}/price", apiHandler.AuthMiddleware(apiHandler.GetPriceHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}/step/advance", apiHandler.AuthMiddleware(apiHandler.AdvanceStepHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/step/retreat", apiHandler.AuthMiddleware(apiHandler.RetreatStepHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/step/jump", apiHandler.AuthMiddleware(apiHandler.JumpStepHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/analyze", apiHandler.AuthMiddleware(apiHandler.AnalyzeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/prompts/random", apiHandler.AuthMiddleware(apiHandler.RandomPromptHandler)).Methods(http.MethodGet)

	// Websocket analysis progress
	router.HandleFunc("/ws/projects/{id}/progress", apiHandler.AnalysisProgressHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	beacon := NewBeaconListener(cfg.AutosaveSinkAddr, snapshotRepo)
	go func() {
		if err := beacon.Run(ctx); err != nil {
			logger.Error("beacon listener stopped", logger.ErrorField(err))
		}
	}()

	if cfg.IngestWatchDir != "" {
		watcher := ingest.NewWatcher(cfg.IngestWatchDir, apiHandler.IngestDroppedFile)
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("ingest watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

func getEnvLevel() string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
