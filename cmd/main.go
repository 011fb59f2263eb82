package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dairystock/config"
	"dairystock/internal/domain"
	"dairystock/internal/pkg/cache"
	"dairystock/internal/pkg/database"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/metrics"

	"dairystock/internal/api/allocation"
	"dairystock/internal/api/product"
	"dairystock/internal/api/router"
	"dairystock/internal/api/stock"
	"dairystock/internal/repository/batchrepo"
	"dairystock/internal/repository/memoryrepo"
	"dairystock/internal/repository/productrepo"
	"dairystock/internal/service/allocationservice"
	"dairystock/internal/service/productservice"
	"dairystock/internal/service/stockservice"
)

func main() {
	// 0. Variáveis de ambiente (.env é opcional: em containers vêm do ambiente)
	if err := godotenv.Load(); err != nil {
		stdlog.Println("Aviso: arquivo .env não encontrado. Usando apenas o ambiente do sistema.")
	}

	// 1. Configuração e Logger
	cfg := config.LoadConfig()
	var log *logger.ZapLogger
	if cfg.Environment == "production" {
		log = logger.NewLogger(cfg.LogLevel)
	} else {
		log = logger.NewDevelopmentLogger(cfg.LogLevel)
	}
	defer log.Sync()
	log.Info("Inicializando serviço DairyStock.", map[string]interface{}{"env": cfg.Environment, "storage": cfg.StorageDriver})

	m := metrics.New("dairystock")

	// 2. Cache (Redis). Sem Redis o serviço segue sem cache e sem rate limit.
	var cacheClient cache.Client
	redisClient, err := cache.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		log.Warn("Redis indisponível, seguindo sem cache.", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		redisClient.Close()
	} else {
		cacheClient = redisClient
		defer redisClient.Close()
		log.Info("Conexão Redis estabelecida.", nil)
	}

	// 3. Repositórios: ledger de lotes e catálogo
	var (
		ledger      domain.BatchLedger
		productRepo productservice.ProductRepository
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		ledger = memoryrepo.NewLedger()
		productRepo = memoryrepo.NewProductRepository()
		log.Warn("Ledger em memória: os dados não sobrevivem a um restart.", nil)
	case config.StorageDriverPostgres:
		db, err := database.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Falha ao conectar ao banco de dados.", err)
		}
		defer db.Close()
		log.Info("Conexão PostgreSQL estabelecida.", nil)

		ledger = batchrepo.NewBatchRepository(db, cfg.DBTimeout, log)
		productRepo = productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTimeout, log)
	default:
		stdlog.Fatalf("STORAGE_DRIVER inválido: %q", cfg.StorageDriver)
	}

	// 4. Serviços
	productSvc := productservice.NewService(productRepo, log)
	stockSvc := stockservice.NewService(ledger, productSvc, cacheClient, cfg.StockSummaryTTL, m, log)
	allocationSvc := allocationservice.NewService(ledger, productSvc, stockSvc, allocationservice.Options{
		MaxRetries: uint64(cfg.AllocationMaxRetries),
		RetryBase:  cfg.AllocationRetryBase,
	}, m, log)

	// 5. Handlers e Roteador
	handler := router.NewRouter(router.Handlers{
		Product:    product.NewHandler(productSvc, log),
		Stock:      stock.NewHandler(stockSvc, log),
		Allocation: allocation.NewHandler(allocationSvc, stockSvc, log),
	}, m, router.RateLimit{
		Client:      cacheClient,
		MaxRequests: cfg.RateLimitMaxRequests,
		Period:      cfg.RateLimitPeriod,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor DairyStock ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
