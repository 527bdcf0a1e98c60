package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"finrag/app/agent"
	"finrag/app/api"
	"finrag/loader"
	"finrag/model"
	"finrag/store"
	"finrag/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    50 * 1024 * 1024, // annual reports get big
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	storer, err := newStore(ctx)
	if err != nil {
		log.Fatal("error initializing storage: ", err)
		return
	}

	llm, err := model.NewOpenAIClient(model.OpenAIConfigFromEnv())
	if err != nil {
		log.Fatal("error creating LLM client: ", err)
		return
	}

	embedder, err := model.NewEmbedderFromEnv()
	if err != nil {
		log.Fatal("error creating embedder: ", err)
		return
	}

	cfg := loadConfig()
	converter := model.NewHTTPConverter(os.Getenv("CONVERTER_URL"))

	pipeline, err := loader.NewPipeline(cfg, storer, llm, embedder, converter)
	if err != nil {
		log.Fatal("error creating ingestion pipeline: ", err)
		return
	}

	var (
		app             = fiber.New(config)
		checkHandler    = api.NewCheckHandler()
		uploadHandler   = api.NewUploadHandler(pipeline)
		chatHandler     = api.NewChatHandler(agent.New(storer, llm, embedder, cfg.TopK))
		documentHandler = api.NewDocumentHandler(storer)
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/documents", uploadHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Delete("/documents/:id", documentHandler.HandleDelete)
	apiv1.Post("/chat", chatHandler.HandleChat)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

// newStore builds the Postgres-backed store, or the in-memory one when
// STORE=memory (local runs without a database).
func newStore(ctx context.Context) (store.DBStorer, error) {
	if os.Getenv("STORE") == "memory" {
		return store.NewMemoryStore(), nil
	}

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))

	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
	}
	if err := pool.Init(ctx); err != nil {
		return nil, fmt.Errorf("error to create tables: %w", err)
	}
	return pool, nil
}

func loadConfig() types.Config {
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "data/uploads"
	}

	return types.Config{
		UploadDir:    uploadDir,
		ChunkSize:    envInt("CHUNK_SIZE", 1200),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		TopK:         envInt("TOP_K", agent.DefaultTopK),
	}
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
