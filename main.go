package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/controller"
	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
	"github/itish2003/pdfchat/tui"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"google.golang.org/genai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closePipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer closePipeline()

	mode, err := models.ParseMode(cfg.DefaultMode)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	sessions := services.NewSessionManager(pipeline, pipeline.Chat.Models()[0], mode)
	defer sessions.CloseAll(context.Background())

	if len(os.Args) > 1 && os.Args[1] == "chat" {
		if err := runChat(ctx, sessions, os.Args[2:]); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		return
	}
	if err := runServer(ctx, cfg, sessions); err != nil {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}

// buildPipeline wires the extractor, embedder, index backend and chat models.
// The returned func releases the clients it opened.
func buildPipeline(ctx context.Context, cfg *config.Config) (*services.Pipeline, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
	}

	embedder, err := services.NewOllamaEmbedder(httpClient, cfg.OllamaURL, cfg.EmbeddingModel)
	if err != nil {
		return nil, closeAll, err
	}

	var factory services.IndexFactory
	switch cfg.VectorBackend {
	case "chroma":
		chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.ChromaURL))
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to create chroma client: %w", err)
		}
		closers = append(closers, func() {
			if err := chromaClient.Close(); err != nil {
				log.Printf("Warning: Failed to close chroma client: %v", err)
			}
		})
		collection, err := services.GetOrCreateChromaCollection(ctx, chromaClient, cfg.ChromaCollection)
		if err != nil {
			return nil, closeAll, err
		}
		factory = services.ChromaIndexFactory(collection, embedder, cfg.EmbeddingModel)
	default:
		factory = services.MemoryIndexFactory(embedder, cfg.EmbeddingModel)
	}

	var geminiClient *genai.Client
	if cfg.GeminiAPIKey != "" {
		geminiClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		log.Printf("Gemini model %s is available.", cfg.GeminiModel)
	}

	pipeline := &services.Pipeline{
		Extractor: services.NewExtractor(cfg.UniDocLicenseKey),
		Indexer:   services.NewIndexer(factory, cfg.EmbedAttempts, cfg.EmbedBackoff),
		Answerer:  services.NewAnswerer(cfg.AnswerLanguage),
		Chat:      services.NewChatRegistry(httpClient, cfg.OllamaURL, cfg.ChatModels, geminiClient, cfg.GeminiModel),
		TopK:      cfg.TopK,
	}
	return pipeline, closeAll, nil
}

func runServer(ctx context.Context, cfg *config.Config, sessions *services.SessionManager) error {
	if cfg.WatchPDF != "" {
		watcher, err := services.NewDocumentWatcher(sessions.GetOrCreate(services.LocalSessionID), cfg.WatchPDF)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				log.Printf("WATCHER ERROR: %v", err)
			}
		}()
	}

	router := newRouter(sessions, cfg.MaxUploadBytes)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	log.Printf("Go Gin backend server starting on http://localhost:%s", cfg.Port)
	log.Printf("Health check available at: http://localhost:%s/health", cfg.Port)
	log.Printf("API endpoints:")
	log.Printf("  POST http://localhost:%s/api/v1/sessions", cfg.Port)
	log.Printf("  POST http://localhost:%s/api/v1/sessions/:id/document", cfg.Port)
	log.Printf("  POST http://localhost:%s/api/v1/sessions/:id/questions", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func newRouter(sessions *services.SessionManager, maxUploadBytes int64) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "healthy",
			"service":  "PDF chat API",
			"version":  "1.0.0",
			"sessions": sessions.Count(),
		})
	})

	sessionController := controller.NewSessionController(sessions, maxUploadBytes)
	sessionController.Register(router.Group("/api/v1"))
	return router
}

// runChat runs the terminal UI on a fresh session, optionally opening a PDF
// given as the first argument.
func runChat(ctx context.Context, sessions *services.SessionManager, args []string) error {
	// Keep log output from corrupting the terminal UI.
	logFile, err := os.CreateTemp("", "pdfchat-*.log")
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	session := sessions.Create()
	m := tui.New(ctx, session, sessions.Options())
	if len(args) > 0 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		m = m.WithInitialFile(path)
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
