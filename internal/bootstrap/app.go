package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	"webrecall/internal/ai"
	"webrecall/internal/app"
	"webrecall/internal/config"
	"webrecall/internal/fetcher"
	"webrecall/internal/index"
	"webrecall/internal/model"
	mysqlClient "webrecall/internal/platform/mysql"
	qdrantClient "webrecall/internal/platform/qdrant"
	rabbitmqClient "webrecall/internal/platform/rabbitmq"
	redisClient "webrecall/internal/platform/redis"
	"webrecall/internal/repository"
	"webrecall/internal/worker"
)

type App struct {
	Config        *config.Config
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	QdrantConn    *grpc.ClientConn
	Lexical       *index.Lexical
	Vector        app.VectorIndex
	AI            *ai.OpenAICompatibleClient
	Fetcher       *fetcher.Client
	ChatLogWorker *worker.ChatLogPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.ChatLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	lexical, err := index.OpenLexical(cfg.Lexical.Path)
	if err != nil {
		return nil, fmt.Errorf("open lexical index failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		Lexical:   lexical,
		StartedAt: time.Now(),
	}

	switch cfg.Vector.Backend {
	case "memory":
		a.Vector = index.NewMemory()
	case "qdrant", "":
		conn, err := qdrantClient.New(cfg.Vector.Addr)
		if err != nil {
			return nil, err
		}
		a.QdrantConn = conn
		q := index.NewQdrant(conn, cfg.Vector.Collection)
		if err := q.EnsureCollection(ctx, cfg.Vector.Dimension); err != nil {
			return nil, fmt.Errorf("ensure qdrant collection failed: %w", err)
		}
		a.Vector = q
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}

	a.AI = ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	}, time.Duration(cfg.LLM.RequestTimeoutSeconds)*time.Second)

	a.Fetcher = fetcher.New(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, cfg.Fetch.UserAgent)

	chatLogRepo := repository.NewChatLogRepository(mysqlDB)
	chatLogWorker := worker.NewChatLogPersistWorker(mqConn, chatLogRepo, cfg.RabbitMQ.ChatLogPersistQueue)
	if err := chatLogWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start chat log worker failed: %w", err)
	}
	a.ChatLogWorker = chatLogWorker

	return a, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.ChatLogWorker != nil {
		a.ChatLogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.QdrantConn != nil {
		if err := a.QdrantConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Lexical != nil {
		if err := a.Lexical.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
