package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "expensecontrol/api/swagger" // swagger docs
	"expensecontrol/internal/config"
	"expensecontrol/internal/database"
	"expensecontrol/internal/handler"
	"expensecontrol/internal/middleware"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"
	"expensecontrol/internal/service"
	"expensecontrol/internal/storage"
	"expensecontrol/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Expense Control API
// @version         1.0
// @description     Expense request approval workflow for branches and administrators.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	log := cfg.NewLogger()
	gin.SetMode(cfg.GinMode)

	dsn, err := cfg.DSN()
	if err != nil {
		log.WithError(err).Fatal("Invalid database configuration")
	}
	db, err := database.NewConnection(dsn, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log.WithField("component", "websocket"), cfg.CORSAllowedOrigins)
	go wsHub.Run(ctx)

	// Repositories
	txManager := repository.NewTransactionManager(db)
	accountRepo := repository.NewAccountRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	lineRepo := repository.NewRequestLineRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	principals := principal.NewResolver(accountRepo)

	// Attachment storage: Drive when it initialises, local disk otherwise
	localBackend, err := storage.NewLocalBackend(cfg.LocalRoot)
	if err != nil {
		log.WithError(err).Fatal("Invalid local attachment root")
	}
	remote := func(ctx context.Context) (storage.Backend, error) {
		creds, err := storage.DriveCredentials(ctx, cfg.DriveConfig)
		if err != nil {
			return nil, err
		}
		drive, err := storage.NewDriveBackend(ctx, storage.DriveOptions{
			RootFolderName:     cfg.RootFolderName,
			RootFolderID:       cfg.RootFolderID,
			RequestsFolderName: cfg.RequestsFolderName,
			SharedDriveID:      cfg.SharedDriveID,
		}, creds...)
		if err != nil {
			return nil, err
		}
		return drive, nil
	}
	blobs := storage.NewSelector(remote, localBackend, cfg.LocalFallback, log.WithField("component", "storage"))

	// Services
	attachmentService := service.NewAttachmentService(attachmentRepo, requestRepo, blobs, principals, log.WithField("component", "attachments"))
	requestService := service.NewRequestService(requestRepo, lineRepo, historyRepo, categoryRepo, txManager, principals, attachmentService, wsHub)
	categoryService := service.NewCategoryService(categoryRepo, principals)
	accountService := service.NewAccountService(accountRepo, principals)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(log.WithField("component", "http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", wsHub.ServeWs(cfg.JWTKey(), principals))

	api := router.Group("/api", middleware.Authenticate(cfg.JWTKey(), principals))
	handler.NewRequestHandler(requestService).RegisterRoutes(api)
	handler.NewAdminRequestHandler(requestService).RegisterRoutes(api)
	handler.NewCategoryHandler(categoryService).RegisterRoutes(api)
	handler.NewAttachmentHandler(attachmentService).RegisterRoutes(api)
	handler.NewAccountHandler(accountService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	log.Info("Server stopped")
}
