/*
Copyright © 2025 cmdf
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/database"
	"github.com/cmdf/pdfnote-be/handler"
	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/middleware"
	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// startServerCmd represents the startServer command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server",
	Long:  `Starts the HTTP server for accounts, documents, OCR import, highlights and chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}

func runServer(parent context.Context, cfg *config.Config) error {
	log := logger.WithComponent("server")
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	mongoClient, err := database.NewMongoClient(ctx, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	chatRepo, err := repository.NewChatRepo(ctx, mongoClient.Database(cfg.MongoDB.Database))
	if err != nil {
		return err
	}

	aiService, err := service.NewAIService(cfg)
	if err != nil {
		return err
	}

	tokenManager := utils.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	tokenRepo := repository.NewTokenRepo(c.db)
	if n, err := service.PurgeRevokedTokens(ctx, tokenRepo); err != nil {
		log.Warn().Err(err).Msg("failed to purge revoked tokens")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("purged expired revoked tokens")
	}

	// Services
	userService := service.NewUserService(repository.NewUserRepo(c.db), tokenRepo, tokenManager)
	highlightService := service.NewHighlightService(repository.NewHighlightRepo(c.db), c.pdfRepo, c.ocrRepo)
	chatService := service.NewChatService(chatRepo, c.pdfRepo, c.ocrRepo, c.indexer, aiService, service.ChatOptions{
		HistoryLimit:     cfg.LLM.HistoryLimit,
		ContextCharLimit: cfg.LLM.ContextCharLimit,
	})
	websocketService := service.NewWebSocketService(chatService, cfg.CORS.AllowedOrigins)

	// Handlers
	accountHandler := handler.NewAccountHandler(userService)
	documentHandler := handler.NewDocumentHandler(c.documents, c.importer)
	highlightHandler := handler.NewHighlightHandler(highlightService)
	chatHandler := handler.NewChatHandler(chatService, websocketService)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.Cors(cfg.CORS.AllowedOrigins),
		middleware.RequestLogger(),
		middleware.Metrics(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(tokenManager)

	accounts := router.Group("/accounts")
	{
		accounts.POST("/signup/", accountHandler.HandleSignup)
		accounts.POST("/login/", accountHandler.HandleLogin)
		accounts.POST("/token/refresh/", accountHandler.HandleRefresh)
		accounts.POST("/token/verify/", accountHandler.HandleVerify)
		accounts.POST("/logout/", auth, accountHandler.HandleLogout)
		accounts.GET("/me/", auth, accountHandler.HandleMe)
		accounts.PATCH("/me/", auth, accountHandler.HandleUpdateMe)
		accounts.POST("/password/change/", auth, accountHandler.HandleChangePassword)
	}

	documents := router.Group("/pdf_documents", auth)
	{
		documents.POST("/upload/", documentHandler.HandleUpload)
		documents.GET("/pdfs/", documentHandler.HandleList)
		documents.POST("/pdfs/:pdf_id/ocr/", documentHandler.HandleOCR)
		documents.POST("/pdfs/:pdf_id/ocr/payload/", documentHandler.HandleOCRPayload)
		documents.GET("/pdfs/:pdf_id/matched-texts/", documentHandler.HandleMatchedTexts)
		documents.GET("/pdfs/:pdf_id/pages/", documentHandler.HandlePages)
		documents.GET("/search/", documentHandler.HandleSearch)
	}
	router.GET("/pdf_figures/figures/:pdf_id/", auth, documentHandler.HandleFigures)

	highlights := router.Group("/highlights", auth)
	{
		highlights.GET("/tags/", highlightHandler.HandleListTags)
		highlights.POST("/tags/", highlightHandler.HandleCreateTag)
		highlights.PUT("/tags/:pk/", highlightHandler.HandleUpdateTag)
		highlights.DELETE("/tags/:pk/", highlightHandler.HandleDeleteTag)
		highlights.GET("/highlights/", highlightHandler.HandleListHighlights)
		highlights.POST("/highlights/", highlightHandler.HandleCreateHighlight)
		highlights.PUT("/highlights/:pk/", highlightHandler.HandleUpdateHighlight)
		highlights.DELETE("/highlights/:pk/", highlightHandler.HandleDeleteHighlight)
	}

	chatbots := router.Group("/chatbots", auth)
	{
		chatbots.GET("/sessions/", chatHandler.HandleListSessions)
		chatbots.POST("/sessions/", chatHandler.HandleCreateSession)
		chatbots.DELETE("/sessions/:session_id/", chatHandler.HandleDeleteSession)
		chatbots.GET("/sessions/:session_id/messages/", chatHandler.HandleHistory)
		chatbots.POST("/sessions/:session_id/messages/", chatHandler.HandleSendMessage)
		chatbots.GET("/sessions/:session_id/ws", chatHandler.HandleWebsocket)
		chatbots.POST("/ask/", chatHandler.HandleAsk)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
