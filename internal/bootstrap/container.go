package bootstrap

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/MKRushil/Pulse/internal/config"
	"github.com/MKRushil/Pulse/internal/controller"
	"github.com/MKRushil/Pulse/internal/handler"
	"github.com/MKRushil/Pulse/internal/pkg/logger"
	"github.com/MKRushil/Pulse/internal/pkg/mailer"
	"github.com/MKRushil/Pulse/internal/repository/memory"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"
	"github.com/MKRushil/Pulse/internal/service"
	"github.com/MKRushil/Pulse/internal/websocket"
	"github.com/MKRushil/Pulse/pkg/embedding"
	"github.com/MKRushil/Pulse/pkg/llm/factory"
	"github.com/MKRushil/Pulse/pkg/security"
	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/convergence"
	"github.com/MKRushil/Pulse/pkg/spiral/engine"
	"github.com/MKRushil/Pulse/pkg/spiral/retrieval"
	"github.com/MKRushil/Pulse/pkg/spiral/selector"

	pktNats "github.com/MKRushil/Pulse/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController   controller.IAuthController
	SpiralController controller.ISpiralController
	AdminController  controller.IAdminController

	// Background Services (Exposed for main.go to run)
	AuditConsumerService service.IAuditConsumerService

	// WebSockets
	SpiralWsHandler *handler.SpiralWsHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(cfg)

	// The engine writes its round-by-round trace through the stdlib logger
	// so the file stays greppable line by line. Same rotation policy as the
	// structured log.
	engineLogger := log.New(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.App.SpiralLogFilePath,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
	}), "", log.LstdFlags)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
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

	rateLimitCfg := security.DefaultRateLimitConfig()
	if cfg.Security.RateLimitPerMinute > 0 {
		rateLimitCfg.RequestsPerIPPerMinute = cfg.Security.RateLimitPerMinute
	}
	rateLimiter := security.NewRateLimiter(rdb, rateLimitCfg)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/spiral_ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(
			cfg.Ai.OpenAIBaseURL,
			cfg.Ai.OpenAIAPIKey,
			cfg.Ai.OpenAIEmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.OpenAIEmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	}
	embeddingProvider = embedding.NewCachedProvider(embeddingProvider)

	llmBaseURL := cfg.Ai.OllamaBaseURL
	llmAPIKey := ""
	if cfg.Ai.LLMProvider == "openai" {
		llmBaseURL = cfg.Ai.OpenAIBaseURL
		llmAPIKey = cfg.Ai.OpenAIAPIKey
	}
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL,
		llmAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Spiral Engine Assembly
	sessionStore := memory.NewSessionStore(
		cfg.Store.MaxSessions,
		time.Duration(cfg.Store.IdleTimeoutHours)*time.Hour,
		time.Duration(cfg.Store.SweepMinutes)*time.Minute,
		engineLogger,
	)

	spiralCfg := spiralConfigFromEnv(cfg)
	searcher := service.NewCaseSearcher(uowFactory, embeddingProvider)
	assembler := retrieval.NewAssembler(searcher, spiralCfg, engineLogger)
	sel := selector.New(spiralCfg)
	conv := convergence.New(spiralCfg)
	reasoner := spiral.NewLLMReasoner(llmProvider)
	validator := security.NewOutputValidator()
	sanitizer := security.NewSanitizer()

	spiralEngine := engine.NewEngine(
		spiralCfg,
		sessionStore,
		assembler,
		sel,
		conv,
		reasoner,
		validator,
		engineLogger,
	)

	// 5. Services
	publisherService := service.NewPublisherService(pubSub)
	authService := service.NewAuthService(uowFactory)
	sessionService := service.NewSessionService(sessionStore)
	diagnosisService := service.NewDiagnosisService(
		spiralEngine,
		sessionStore,
		sanitizer,
		rateLimiter,
		publisherService,
		natsPub,
	)
	adminService := service.NewAdminService(uowFactory, sysLogger)

	auditConsumerService := service.NewAuditConsumerService(
		pubSub,
		uowFactory,
		wsHub,
		emailService,
		cfg.Security.AlertFlagThreshold,
	)

	// Corpus Ingestion (Worker)
	if natsSub != nil {
		corpusIngestService := service.NewCorpusIngestService(natsSub, uowFactory, embeddingProvider)
		if err := corpusIngestService.Start(); err != nil {
			log.Printf("[WARN] Failed to start corpus ingester: %v", err)
		}
	}

	// Handler
	spiralWsHandler := handler.NewSpiralWsHandler(wsHub, sessionStore, wsLogger)

	// 6. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		SpiralWsHandler:  spiralWsHandler,
		WebSocketHub:     wsHub,
		AuthController:   controller.NewAuthController(authService),
		SpiralController: controller.NewSpiralController(sessionService, diagnosisService),
		AdminController:  controller.NewAdminController(adminService),

		AuditConsumerService: auditConsumerService,
	}
}

// spiralConfigFromEnv layers the environment overrides onto the engine
// defaults. SearchFields and the follow-up band edges are not exposed as
// env knobs; the defaults stand.
func spiralConfigFromEnv(cfg *config.Config) spiral.Config {
	sc := spiral.DefaultConfig()
	sc.CandidateTarget = cfg.Spiral.CandidateTarget
	sc.MaxRounds = cfg.Spiral.MaxRounds
	sc.HighCoverage = cfg.Spiral.HighCoverage
	sc.ForcedFloor = cfg.Spiral.ForcedFloor
	sc.WeightSimilarity = cfg.Spiral.WeightSimilarity
	sc.WeightSymptom = cfg.Spiral.WeightSymptom
	sc.WeightTonguePulse = cfg.Spiral.WeightTonguePulse
	sc.WeightSpecificity = cfg.Spiral.WeightSpecificity
	sc.TieBreakGap = cfg.Spiral.TieBreakGap
	sc.AnchorRegression = cfg.Spiral.AnchorRegression
	sc.ConvWeightCoverage = cfg.Spiral.ConvWeightCoverage
	sc.ConvWeightAnchor = cfg.Spiral.ConvWeightAnchor
	sc.ConvWeightProgress = cfg.Spiral.ConvWeightProgress
	sc.StageTimeout = time.Duration(cfg.Spiral.StageTimeoutSeconds) * time.Second
	sc.UnavailableRetries = cfg.Spiral.UnavailableRetries
	sc.VirtualCaseScore = cfg.Spiral.VirtualCaseScore
	return sc
}
