package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"collabsync/backend/config"
	"collabsync/backend/internal/cache"
	"collabsync/backend/internal/collab"
	"collabsync/backend/internal/httpapi/handlers"
	"collabsync/backend/internal/httpapi/middleware"
	"collabsync/backend/internal/room"
	"collabsync/backend/internal/store"
	"collabsync/backend/internal/ws"
)

func main() {
	cfg, err := config.Init()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	gormDB, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// === 初始化 Kafka Producer ===
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	// Kafka 本地队列 + worker 重试发送
	kafkaSem := collab.NewSemaphoreControl(100)
	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	documentStore := store.NewDocumentStore(gormDB)
	snapshotStore := store.NewSnapshotStore(sqlDB)
	gateway := store.NewGateway(documentStore, snapshotStore)
	mirror := cache.NewRedisPresence(rdb)

	hub := ws.NewHub()
	mgr := room.NewManager(gateway, hub, mirror, dispatcher, room.Options{
		IdleThreshold: time.Duration(cfg.Room.IdleMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Room.SweepMinutes) * time.Minute,
		SaveDebounce:  time.Duration(cfg.Room.SaveDebounceSeconds) * time.Second,
		TypingTimeout: time.Duration(cfg.Room.TypingSeconds) * time.Second,
		HistoryLimit:  cfg.Room.HistoryLimit,
	})
	mgr.Start()
	defer mgr.Stop()

	manager := ws.NewManager(hub, mgr)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	collabGroup := r.Group("/collab")
	// 鉴权中间件：从 Authorization 或 ?token= 提取并本地校验，写入 userId/username/avatar
	collabGroup.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	collabGroup.GET("/ws", manager.WebSocketConnect)

	// 文档管理面：建档/查档走 HTTP，内容同步走上面的 ws
	docHandlers := handlers.NewDocumentHandlers(documentStore)
	collabGroup.POST("/documents", docHandlers.CreateDocument)
	collabGroup.GET("/documents/:documentID", docHandlers.GetDocument)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	port := cfg.Running.Port
	_ = r.Run(fmt.Sprintf(":%d", port))
}
