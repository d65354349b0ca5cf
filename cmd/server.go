package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/spf13/cobra"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/bot"
	"github.com/macmann/mealmebase/internal/config"
	"github.com/macmann/mealmebase/internal/database"
	"github.com/macmann/mealmebase/internal/embedding"
	"github.com/macmann/mealmebase/internal/gateway"
	"github.com/macmann/mealmebase/internal/ingest"
	"github.com/macmann/mealmebase/internal/llm"
	"github.com/macmann/mealmebase/internal/memory"
	"github.com/macmann/mealmebase/internal/retrieval"
	"github.com/macmann/mealmebase/internal/server"
	"github.com/macmann/mealmebase/internal/vectorstore"
)

// serverCmd 启动服务
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动对话网关服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db := database.GetDB()

	if err := server.EnsureAdmin(cfg); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantOptions{
		URL:       cfg.Qdrant.URL,
		APIKey:    cfg.Qdrant.APIKey,
		Dimension: cfg.Qdrant.Dimension,
		Timeout:   time.Duration(cfg.Qdrant.Timeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect qdrant: %w", err)
	}

	// Redis 缓存是可选的,连不上就退化为直连 Embedding 后端
	var cache *embedding.RedisCache
	if cfg.Cache.Enabled {
		cache, err = embedding.NewRedisCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
			time.Duration(cfg.Cache.TTL)*time.Second)
		if err != nil {
			logx.Warn("Embedding cache unavailable, continuing without: %v", err)
			cache = nil
		}
	}

	embedder, err := embedding.NewService(&embedding.Config{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	}, cache)
	if err != nil {
		return fmt.Errorf("failed to init embedding service: %w", err)
	}

	responder := llm.NewResponder(&llm.Config{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.Timeout) * time.Second,
	})

	registry := agent.NewRegistry(db, store)

	// 仪表盘历史只存内存,机器人历史写穿到数据库
	dashboard := memory.NewStore(nil)
	bots := memory.NewStore(db)

	gw := gateway.New(gateway.Options{
		Registry:  registry,
		Retriever: retrieval.NewRetriever(store, embedder),
		Responder: responder,
		Ingestor:  ingest.NewPipeline(store, embedder),
		Store:     store,
		Dashboard: dashboard,
		Bots:      bots,
	})

	supervisor := bot.NewSupervisor(gw.BotChatFunc())
	supervisor.StartAll(registry.List())

	srv := server.New(cfg, gw, registry, supervisor)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		logx.Info("Received signal %s, shutting down", sig)
	}

	// 关停顺序:先停 HTTP,再停机器人轮询,最后关数据库
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logx.Warn("HTTP server shutdown: %v", err)
	}

	supervisor.StopAll()

	if err := database.Close(); err != nil {
		logx.Warn("Database close: %v", err)
	}

	logx.Info("Shutdown complete")
	return nil
}
