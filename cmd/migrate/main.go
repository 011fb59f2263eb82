package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"dairystock/config"
	"dairystock/internal/pkg/database"
	"dairystock/internal/pkg/logger"
)

// gooseLogger encaminha as mensagens do goose para o logger do serviço.
type gooseLogger struct {
	log logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), nil)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal("Migração interrompida.", fmt.Errorf(format, v...))
}

// Uso: migrate [-dir ./sql] [up|down|status|redo|version|up-to N|down-to N]
func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("Aviso: arquivo .env não encontrado. Usando apenas o ambiente do sistema.")
	}

	var migrationsDir string
	flag.StringVar(&migrationsDir, "dir", "./sql", "diretório com os arquivos de migração")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.NewDevelopmentLogger(cfg.LogLevel)
	defer log.Sync()

	if cfg.StorageDriver != config.StorageDriverPostgres {
		log.Warn("STORAGE_DRIVER não é postgres; nada a migrar.", map[string]interface{}{"storage": cfg.StorageDriver})
		return
	}

	command, args := "up", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados para migração.", err)
	}
	defer db.Close()

	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Dialeto do goose inválido.", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Executando migração.", map[string]interface{}{"command": command, "dir": migrationsDir})
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		log.Fatal(fmt.Sprintf("goose %s falhou.", command), err)
	}
	log.Info("Migração concluída.", map[string]interface{}{"command": command})
}
