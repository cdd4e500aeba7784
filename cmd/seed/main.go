// Команда seed наполняет базу демонстрационными данными: пользователь и
// набор постов, часть из которых остаётся черновиками.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/ButyrinIA/blog/internal/auth"
	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/ButyrinIA/blog/internal/storage/orm"
	"github.com/ButyrinIA/blog/internal/storage/postgres"
	"github.com/brianvoe/gofakeit/v6"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "postgres", "тип хранилища: postgres или orm")
	username := flag.String("username", "admin", "имя пользователя")
	password := flag.String("password", "admin", "пароль пользователя")
	published := flag.Int("posts", 10, "количество опубликованных постов")
	drafts := flag.Int("drafts", 2, "количество черновиков")
	seed := flag.Int64("seed", 0, "seed генератора (0 - случайный)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	ctx := context.Background()
	var store storage.Storage
	switch *storageType {
	case "postgres":
		store, err = postgres.New(ctx, cfg.Postgres)
	case "orm":
		store, err = orm.New(ctx, cfg.Postgres)
	default:
		log.Fatalf("Неизвестный тип хранилища: %s", *storageType)
	}
	if err != nil {
		log.Fatalf("Не удалось инициализировать хранилище: %v", err)
	}
	defer store.Close()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(*seed)

	author, created, err := auth.EnsureUser(ctx, store, *username, *password)
	if err != nil {
		log.Fatalf("Не удалось создать пользователя: %v", err)
	}
	if created {
		log.Printf("Создан пользователь %s", author.Username)
	} else {
		log.Printf("Пользователь %s уже существует", author.Username)
	}

	now := time.Now().UTC()
	for i := 0; i < *published+*drafts; i++ {
		post := &models.Post{
			Title:    faker.Sentence(faker.Number(3, 8)),
			Body:     faker.Paragraph(faker.Number(1, 4), faker.Number(3, 6), faker.Number(8, 16), "\n\n"),
			AuthorID: author.ID,
		}
		if i < *published {
			at := now.Add(-time.Duration(faker.Number(1, 60*24*30)) * time.Minute)
			post.PublishedAt = &at
		}
		if len([]rune(post.Title)) > 200 {
			post.Title = string([]rune(post.Title)[:200])
		}
		if err := store.CreatePost(ctx, post); err != nil {
			log.Fatalf("Не удалось создать пост: %v", err)
		}
	}

	log.Printf("Готово: пользователь %s, опубликовано %d, черновиков %d", author.Username, *published, *drafts)
}
