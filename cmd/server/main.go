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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/chunker"
	"docchat-go/internal/config"
	"docchat-go/internal/handler"
	"docchat-go/internal/middleware"
	"docchat-go/internal/notify"
	"docchat-go/internal/pipeline"
	"docchat-go/internal/repository"
	"docchat-go/internal/service"
	"docchat-go/internal/tracker"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/database"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/es"
	"docchat-go/pkg/kafka"
	"docchat-go/pkg/llm"
	"docchat-go/pkg/log"
	"docchat-go/pkg/storage"
	"docchat-go/pkg/tika"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config file")
	seedDir := flag.String("seed", "initfile", "directory of PDFs imported at startup")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据库、Redis、MinIO 和 Kafka
	if err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	if err := database.InitRedis(ctx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB); err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	if err := storage.InitMinIO(ctx, cfg.MinIO); err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 向量存储与能力客户端
	embeddingClient := embedding.NewClient(cfg.Embedding)
	store, err := newVectorStore(ctx, cfg)
	if err != nil {
		log.Fatal("向量存储初始化失败", err)
	}
	llmClient := llm.NewClient(cfg.LLM)

	// 5. 状态广播：本地 Hub，配置了 Redis 频道时经 Redis 在实例间转发
	hub := notify.NewHub(cfg.Notifier.ClientBuffer)
	var notifier notify.Notifier = hub
	if cfg.Notifier.RedisChannel != "" {
		publisher := notify.NewRedisPublisher(database.RDB, cfg.Notifier.RedisChannel, cfg.Notifier.ClientBuffer)
		defer publisher.Close()
		notifier = publisher
		go func() {
			if err := notify.RelayFromRedis(ctx, database.RDB, cfg.Notifier.RedisChannel, hub); err != nil {
				log.Error("Redis 事件订阅失败", err)
			}
		}()
	}

	// 6. Tracker、流水线与 Service (依赖注入)
	docTracker := tracker.New(repository.NewDocumentRepository(database.DB), store, notifier)
	var chunkOpts []chunker.Option
	if cfg.Ingestion.BreakTolerance > 0 {
		chunkOpts = append(chunkOpts, chunker.WithBreakTolerance(cfg.Ingestion.BreakTolerance))
	}
	textChunker, err := chunker.New(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap, chunkOpts...)
	if err != nil {
		log.Fatal("分块参数无效", err)
	}
	ingestion, err := pipeline.NewIngestion(docTracker, textChunker, embeddingClient, store)
	if err != nil {
		log.Fatal("摄取流水线初始化失败", err)
	}
	answerService, err := service.NewAnswerService(docTracker, embeddingClient, store, llmClient, cfg.Answer, cfg.LLM.Prompt)
	if err != nil {
		log.Fatal("问答服务初始化失败", err)
	}
	objects := storage.NewMinIOStore(storage.MinioClient, cfg.MinIO.BucketName)
	documentService := service.NewDocumentService(docTracker, objects, kafka.ProduceIngestionTask)

	// 7. 启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(docTracker, objects, tika.NewClient(cfg.Tika), ingestion)
	worker := kafka.NewWorker(processor, kafka.NewRedisAttempts(database.RDB), cfg.Kafka.MaxAttempts, nil)
	waitConsumers := kafka.StartConsumers(ctx, cfg.Kafka, worker)

	go initSeedFiles(ctx, *seedDir, documentService)

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r,
		handler.NewDocumentHandler(documentService, answerService, cfg.Server.MaxUploadMB),
		handler.NewEventsHandler(ctx, hub),
	)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	waitConsumers()
	ingestion.Wait()
	if err := kafka.CloseProducer(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// newVectorStore 按配置选择向量存储后端。
func newVectorStore(ctx context.Context, cfg config.Config) (vectorstore.Store, error) {
	dims := cfg.Embedding.Dimensions
	switch cfg.VectorStore.Backend {
	case "elasticsearch":
		if err := es.InitES(ctx, cfg.Elasticsearch, dims); err != nil {
			return nil, err
		}
		log.Infof("向量存储: Elasticsearch kNN, index=%s, dims=%d", cfg.Elasticsearch.IndexName, dims)
		return vectorstore.NewESStore(es.ESClient, cfg.Elasticsearch.IndexName, dims, cfg.Embedding.Model), nil
	default:
		log.Infof("向量存储: MySQL 精确余弦检索, dims=%d", dims)
		return vectorstore.NewSQLStore(repository.NewChunkRepository(database.DB), dims), nil
	}
}

// initSeedFiles 扫描目录下的 PDF 并通过标准上传流程导入，同名文档已存在则跳过。
func initSeedFiles(ctx context.Context, dir string, docs service.DocumentService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	existing := make(map[string]bool)
	list, err := docs.List(ctx)
	if err != nil {
		log.Warnf("initSeedFiles: 获取文档列表失败，跳过初始化导入: %v", err)
		return
	}
	for _, d := range list {
		existing[d.Name] = true
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fileName := info.Name()
		if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
			return nil
		}
		if existing[fileName] {
			log.Infof("initSeedFiles: 已存在，跳过: %s", fileName)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("initSeedFiles: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		doc, err := docs.Upload(ctx, fileName, f, info.Size())
		if err != nil {
			log.Warnf("initSeedFiles: 导入失败: %s, err=%v", path, err)
			return nil
		}
		existing[fileName] = true
		log.Infof("initSeedFiles: 导入完成并已触发摄取: %s (id=%s)", fileName, doc.ID)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		log.Warnf("initSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
}
