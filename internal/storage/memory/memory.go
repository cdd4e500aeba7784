package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
)

type MemoryStorage struct {
	posts      map[int64]*models.Post
	users      map[int64]*models.User
	usernames  map[string]int64
	nextPostID int64
	nextUserID int64
	mu         sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		posts:     make(map[int64]*models.Post),
		users:     make(map[int64]*models.User),
		usernames: make(map[string]int64),
	}
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[post.AuthorID]; !ok {
		return storage.ErrNotFound
	}

	s.nextPostID++
	post.ID = s.nextPostID
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	// Храним копию, чтобы вызывающий код не мог изменить сохранённый пост
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return clonePost(post), nil
}

func (s *MemoryStorage) ListPublishedPosts(ctx context.Context) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		if !post.IsPublished() {
			continue
		}
		posts = append(posts, clonePost(post))
	}

	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return a.ID > b.ID
	})

	return posts, nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usernames[user.Username]; exists {
		return storage.ErrUserExists
	}

	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	stored := *user
	s.users[user.ID] = &stored
	s.usernames[user.Username] = user.ID
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	u := *user
	return &u, nil
}

func (s *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.usernames[username]
	if !exists {
		return nil, storage.ErrNotFound
	}

	u := *s.users[id]
	return &u, nil
}

func (s *MemoryStorage) GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]*models.User, len(ids))
	for _, id := range ids {
		if user, exists := s.users[id]; exists {
			u := *user
			result[id] = &u
		}
	}
	return result, nil
}

// clonePost копирует пост вместе с PublishedAt.
func clonePost(post *models.Post) *models.Post {
	p := *post
	if post.PublishedAt != nil {
		at := *post.PublishedAt
		p.PublishedAt = &at
	}
	return &p
}

// Close очищает хранилище.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = make(map[int64]*models.Post)
	s.users = make(map[int64]*models.User)
	s.usernames = make(map[string]int64)
	return nil
}
