// Package orm реализует storage.Storage поверх gorm. Схема создаётся через AutoMigrate.
package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

type userRecord struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type postRecord struct {
	ID          int64      `gorm:"primaryKey"`
	Title       string     `gorm:"size:200;not null"`
	Body        string     `gorm:"type:text;not null"`
	AuthorID    int64      `gorm:"not null;index"`
	Author      userRecord `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT"`
	PublishedAt *time.Time `gorm:"index"`
	CreatedAt   time.Time  `gorm:"not null"`
}

func (postRecord) TableName() string { return "posts" }

type ORMStorage struct {
	db *gorm.DB
}

func New(ctx context.Context, cfg config.PostgresConfig) (*ORMStorage, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&userRecord{}, &postRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &ORMStorage{db: db}, nil
}

func (s *ORMStorage) CreatePost(ctx context.Context, post *models.Post) error {
	rec := postRecord{
		Title:       post.Title,
		Body:        post.Body,
		AuthorID:    post.AuthorID,
		PublishedAt: post.PublishedAt,
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("author %d: %w", post.AuthorID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.ID = rec.ID
	post.CreatedAt = rec.CreatedAt
	return nil
}

func (s *ORMStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var rec postRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select post %d: %w", id, err)
	}
	return rec.toModel(), nil
}

func (s *ORMStorage) ListPublishedPosts(ctx context.Context) ([]*models.Post, error) {
	var recs []postRecord
	err := s.db.WithContext(ctx).
		Where("published_at IS NOT NULL").
		Order("published_at DESC").
		Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("select published posts: %w", err)
	}

	posts := make([]*models.Post, len(recs))
	for i := range recs {
		posts[i] = recs[i].toModel()
	}
	return posts, nil
}

func (s *ORMStorage) CreateUser(ctx context.Context, user *models.User) error {
	rec := userRecord{Username: user.Username, PasswordHash: user.PasswordHash}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = rec.ID
	user.CreatedAt = rec.CreatedAt
	return nil
}

func (s *ORMStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return rec.toModel(), nil
}

func (s *ORMStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	return rec.toModel(), nil
}

func (s *ORMStorage) GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	result := make(map[int64]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var recs []userRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	for i := range recs {
		result[recs[i].ID] = recs[i].toModel()
	}
	return result, nil
}

func (s *ORMStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *postRecord) toModel() *models.Post {
	return &models.Post{
		ID:          r.ID,
		Title:       r.Title,
		Body:        r.Body,
		AuthorID:    r.AuthorID,
		PublishedAt: r.PublishedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *userRecord) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}
