package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/config"
	"github.com/petterhj/yt-dvr/handlers"
	"github.com/petterhj/yt-dvr/middleware"
	"github.com/petterhj/yt-dvr/services"
	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/store"
	"github.com/petterhj/yt-dvr/websocket"
)

// StartServer wires up the service and runs the HTTP server. It blocks
// until the server exits.
func StartServer(cfg *config.Config) {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsurePaths(); err != nil {
		logger.Fatal("could not prepare data directories", "err", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBFilePath)
	if err != nil {
		logger.Fatal("could not open store", "err", err)
	}
	defer st.Close()

	registry := sources.NewRegistry(map[string]sources.Source{
		"youtube": sources.NewYouTube(sources.YouTubeConfig{
			APIKey:           cfg.YouTubeAPIKey,
			PlaylistID:       cfg.YouTubePlaylistID,
			PlaylistMaxCount: cfg.YouTubePlaylistCount,
			OutputPath:       cfg.OutputPath,
			OutputTemplate:   cfg.OutputTemplate,
		}, logger),
	})

	hub := websocket.NewHub(logger)
	go hub.Run()

	jobs := services.NewJobs(st, logger)
	runner := services.NewRunner(jobs, registry, hub, logger, cfg.MaxConcurrentJobs)
	runner.Start()
	defer runner.Close()

	recorder := services.NewRecorder(st, registry, jobs, runner, hub, logger)

	itemHandler := handlers.NewItemHandler(recorder)
	jobHandler := handlers.NewJobHandler(recorder)
	stateHandler := handlers.NewStateHandler(recorder, registry, cfg)
	socketHandler := handlers.NewSocketHandler(hub, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Logging(logger))

	setupRoutes(r, itemHandler, jobHandler, stateHandler, socketHandler)

	logger.Info("yt-dvr server starting", "port", cfg.Port, "sources", registry.Names())
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}

// setupRoutes configures all the HTTP routes.
func setupRoutes(r *gin.Engine, items *handlers.ItemHandler, jobs *handlers.JobHandler, state *handlers.StateHandler, socket *handlers.SocketHandler) {
	r.GET("/health", state.HealthCheck)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/state", state.State)

		apiGroup.POST("/items", items.AddItem)
		apiGroup.GET("/items", items.ListItems)
		apiGroup.GET("/items/:source", items.ListItems)
		apiGroup.GET("/items/:source/:item_id", items.GetItem)
		apiGroup.DELETE("/items/:source/:item_id", items.DeleteItem)
		apiGroup.GET("/items/:source/:item_id/retry", items.RetryItem)

		apiGroup.GET("/sources/:source/catalog", items.Catalog)

		apiGroup.GET("/jobs", jobs.ListJobs)
		apiGroup.GET("/jobs/start", jobs.StartJobs)

		apiGroup.GET("/ws", socket.Connect)
	}
}
