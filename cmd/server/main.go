package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ButyrinIA/blog/internal/auth"
	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/server"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/ButyrinIA/blog/internal/storage/memory"
	"github.com/ButyrinIA/blog/internal/storage/orm"
	"github.com/ButyrinIA/blog/internal/storage/postgres"
	"github.com/ButyrinIA/blog/internal/tracing"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory, postgres или orm (по умолчанию из конфигурации)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Storage = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Некорректная конфигурация: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatalf("Не удалось инициализировать трассировку: %v", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			log.Printf("Ошибка остановки трассировки: %v", err)
		}
	}()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Не удалось инициализировать хранилище %s: %v", cfg.Storage, err)
	}
	defer store.Close()

	if name := cfg.Auth.AdminUsername; name != "" {
		_, created, err := auth.EnsureUser(ctx, store, name, cfg.Auth.AdminPassword)
		if err != nil {
			log.Fatalf("Не удалось создать пользователя %s: %v", name, err)
		}
		if created {
			log.Printf("Создан пользователь %s", name)
		}
	}

	srv, err := server.New(cfg, store)
	if err != nil {
		log.Fatalf("Не удалось создать сервер: %v", err)
	}

	log.Println("Запуск сервера")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage {
	case "postgres":
		log.Println("Инициализация хранилища PostgreSQL (pgx)")
		return postgres.New(ctx, cfg.Postgres)
	case "orm":
		log.Println("Инициализация хранилища PostgreSQL (gorm)")
		return orm.New(ctx, cfg.Postgres)
	default:
		log.Println("Инициализация хранилища Memory")
		return memory.New(), nil
	}
}
