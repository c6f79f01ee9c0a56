// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consultor-ia-go/internal/app"
	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/handler"
	"consultor-ia-go/internal/intent"
	"consultor-ia-go/internal/middleware"
	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/pipeline"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/database"
	"consultor-ia-go/pkg/kafka"
	"consultor-ia-go/pkg/llm"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/storage"
	"consultor-ia-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 可选基础设施：未配置的组件不启用，对应功能降级
	var (
		auditRepo  repository.ConversationLogRepository
		uploadRepo repository.UploadRepository
		objects    storage.ObjectStore
		queue      service.TaskQueue
		rdb        *redis.Client
	)
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.OpenMySQL(cfg.Database.MySQL.DSN, &model.Conversation{}, &model.DocumentUpload{})
		if err != nil {
			log.Fatal("MySQL 初始化失败", err)
		}
		auditRepo = repository.NewConversationLogRepository(db)
		uploadRepo = repository.NewUploadRepository(db)
	}
	if cfg.Database.Redis.Addr != "" {
		client, err := database.OpenRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		rdb = client
	}
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		objects = minioStore
	}
	var producer *kafka.Producer
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		queue = producer
	}

	// 4. 知识库
	knowledge, err := app.NewKnowledge(ctx, &cfg)
	if err != nil {
		log.Fatal("知识库初始化失败", err)
	}

	consultantRepo, err := repository.LoadConsultantRepository(cfg.Consultants.Dir)
	if err != nil {
		log.Warnf("加载顾问名册失败，顾问推荐不可用: %v", err)
		consultantRepo = repository.NewConsultantRepository(nil)
	}

	rules, err := intent.LoadRules(cfg.Intent.RulesFile)
	if err != nil {
		log.Warnf("加载意图规则失败，使用内置规则: %v", err)
		rules = intent.DefaultRules()
	}

	var sessions repository.SessionRepository
	if cfg.Chat.HistoryStore == "redis" && rdb != nil {
		sessions = repository.NewRedisSessionRepository(rdb, cfg.Chat.Timeout())
	} else {
		sessions = repository.NewMemorySessionRepository(cfg.Chat.Timeout(), nil)
	}

	// 5. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	retrievalService := service.NewRetrievalService(knowledge.Store, service.RetrievalOptions{
		TopK:          cfg.Knowledge.TopK,
		FallbackLimit: cfg.Knowledge.FallbackLimit,
		TermK:         cfg.Knowledge.FallbackTermK,
		MaxTerms:      cfg.Knowledge.FallbackTerms,
	})
	consultantService := service.NewConsultantService(consultantRepo, cfg.Consultants.Limit)
	chatService := service.NewChatService(
		intent.NewClassifier(rules),
		retrievalService,
		consultantService,
		llmClient,
		sessions,
		auditRepo,
		service.ChatOptions{
			MaxTurns:     cfg.Chat.MaxTurns,
			ContextTurns: cfg.Chat.ContextTurns,
			Generation:   cfg.LLM.Generation,
			Prompt:       cfg.LLM.Prompt,
		},
	)
	conversationService := service.NewConversationService(sessions, auditRepo)
	documentService := service.NewDocumentService(cfg.Knowledge.DocsDir, knowledge.Ingestor, knowledge.Manifest, uploadRepo, objects, queue)

	// 6. 后台任务：Kafka 消费者、目录监听、启动时入库
	if producer != nil {
		go kafka.NewConsumer(cfg.Kafka, rdb, documentService).Run(ctx)
	}
	if cfg.Knowledge.IngestOnStartup {
		go func() {
			report, err := documentService.IngestAll(ctx)
			if err != nil {
				log.Error("启动时入库失败", err)
				return
			}
			log.Infof("启动时入库完成: 新处理 %d, 跳过 %d, 失败 %d", report.Processed, report.Skipped, report.Failed)
		}()
	}
	if cfg.Knowledge.Watch {
		watcher := pipeline.NewWatcher(cfg.Knowledge.DocsDir, knowledge.Ingestor, 0)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("目录监听退出", err)
			}
		}()
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	chatHandler := handler.NewChatHandler(chatService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	documentHandler := handler.NewDocumentHandler(documentService)
	consultantHandler := handler.NewConsultantHandler(consultantService)
	searchHandler := handler.NewSearchHandler(retrievalService)
	statusHandler := handler.NewStatusHandler(documentService, consultantService, conversationService, cfg.LLM.Model, llmClient.Configured())

	r.GET("/health", statusHandler.Health)

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	if cfg.Auth.Enabled {
		apiV1.Use(middleware.AuthMiddleware(token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.AccessTokenExpireHours)))
	}
	{
		apiV1.GET("/status", statusHandler.Status)
		apiV1.GET("/metrics", statusHandler.Metrics)
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.GET("/chat/ws", chatHandler.Handle)
		apiV1.GET("/search", searchHandler.Search)

		conversation := apiV1.Group("/conversation")
		{
			conversation.GET("", conversationHandler.GetHistory)
			conversation.DELETE("", conversationHandler.ClearHistory)
			conversation.GET("/audit", conversationHandler.GetAuditLog)
		}

		documents := apiV1.Group("/documents")
		{
			documents.GET("", documentHandler.ListDocuments)
			documents.DELETE("", documentHandler.Clear)
			documents.POST("/upload", documentHandler.Upload)
			documents.POST("/ingest", documentHandler.IngestAll)
			documents.POST("/file", documentHandler.AddFile)
			documents.DELETE("/file", documentHandler.RemoveFile)
			documents.GET("/check", documentHandler.CheckFile)
			documents.GET("/stats", documentHandler.Stats)
			documents.GET("/uploads", documentHandler.ListUploads)
			documents.GET("/download", documentHandler.GenerateDownloadURL)
		}

		consultants := apiV1.Group("/consultants")
		{
			consultants.GET("", consultantHandler.Search)
			consultants.GET("/stats", consultantHandler.Stats)
			consultants.GET("/area/:area", consultantHandler.ByArea)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停止后台任务，再关闭 HTTP 服务器
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
