package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"admission-chatbot-be/internal/config"
	"admission-chatbot-be/internal/controller"
	"admission-chatbot-be/internal/pkg/logger"
	"admission-chatbot-be/internal/repository/implementation"
	"admission-chatbot-be/internal/repository/memory"
	"admission-chatbot-be/internal/repository/unitofwork"
	"admission-chatbot-be/internal/service"
	"admission-chatbot-be/internal/websocket"
	"admission-chatbot-be/pkg/embedding"
	"admission-chatbot-be/pkg/graph"
	"admission-chatbot-be/pkg/llm/factory"
	"admission-chatbot-be/pkg/qa/classify"
	"admission-chatbot-be/pkg/qa/delivery"
	"admission-chatbot-be/pkg/qa/pipeline"
	"admission-chatbot-be/pkg/qa/ratelimit"
	"admission-chatbot-be/pkg/qa/retrieval"
	"admission-chatbot-be/pkg/qa/verify"

	pktNats "admission-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController  controller.IChatController
	AdminController controller.IAdminController

	// Background Services (Exposed for main.go to run)
	VerificationService service.IVerificationService

	// WebSockets
	WebSocketHub *websocket.Hub

	// Held for shutdown
	NatsPublisher  *pktNats.Publisher
	NatsSubscriber *pktNats.Subscriber
	GraphClient    *graph.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	qaLogger := initQALogger()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Knowledge graph (optional: vector search carries retrieval alone when
	// the graph is unreachable)
	var graphClient *graph.Client
	graphClient, err = graph.NewClient(graph.Config{
		URI:      cfg.Graph.URI,
		User:     cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	})
	if err != nil {
		log.Printf("[WARN] Failed to connect to Neo4j: %v", err)
		graphClient = nil
	}

	// In-memory conversation session cache
	sessionRepo := memory.NewSessionRepository()

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 5. QA Core
	thresholds := verify.Thresholds{
		High: cfg.Qa.HighThreshold,
		Low:  cfg.Qa.LowThreshold,
	}

	classifier := classify.NewClassifier(
		llmProvider,
		time.Duration(cfg.Qa.ClassifyTimeoutMs)*time.Millisecond,
		qaLogger,
	)

	chunkRepo := implementation.NewDocumentChunkRepository(db)
	vectorSearcher := retrieval.NewVectorSearcher(embeddingProvider, chunkRepo, cfg.Qa.SimilarityFloor)
	var searcher retrieval.Searcher = vectorSearcher
	if graphClient != nil {
		searcher = retrieval.NewCompositeSearcher(vectorSearcher, retrieval.NewGraphSearcher(graphClient))
	}

	orchestrator := retrieval.NewOrchestrator(searcher, llmProvider, cfg.Qa.RetrievalLimit, thresholds.High, qaLogger)
	verifier := verify.NewVerifier(llmProvider)

	executor := pipeline.NewExecutor(
		classifier,
		orchestrator,
		verifier,
		llmProvider,
		thresholds,
		sessionRepo,
		qaLogger,
	)

	// Rate limiter
	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisStore(rdb),
		cfg.RateLimit.Limit,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		sysLogger,
	)

	// Delivery channel
	registry := delivery.NewRegistry()
	emitter := delivery.NewEmitter(pubSub, registry, qaLogger)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/delivery.log")
	wsHub := websocket.NewHub(emitter, rdb, wsLogger)
	go wsHub.Run()

	// 6. Services
	verificationService := service.NewVerificationService(
		uowFactory,
		verifier,
		natsPub,
		natsSub,
		service.QueueOptions{
			PoolSize:    cfg.Qa.WorkerPoolSize,
			MaxRetries:  cfg.Qa.MaxRetries,
			BackoffBase: time.Duration(cfg.Qa.BackoffBaseSec) * time.Second,
			BackoffCap:  time.Duration(cfg.Qa.BackoffCapSec) * time.Second,
		},
		qaLogger,
	)

	chatService := service.NewChatService(
		uowFactory,
		executor,
		emitter,
		limiter,
		verificationService,
		time.Duration(cfg.Qa.PipelineTimeoutMs)*time.Millisecond,
	)

	// 7. Controllers
	chatController := controller.NewChatController(chatService, wsHub, sysLogger)
	adminController := controller.NewAdminController(verificationService)

	return &Container{
		ChatController:      chatController,
		AdminController:     adminController,
		VerificationService: verificationService,
		WebSocketHub:        wsHub,
		NatsPublisher:       natsPub,
		NatsSubscriber:      natsSub,
		GraphClient:         graphClient,
	}
}

func initQALogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "qa_core.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[QA] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
