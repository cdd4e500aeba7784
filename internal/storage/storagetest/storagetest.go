// Package storagetest содержит общий набор проверок для всех реализаций storage.Storage.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run прогоняет контракт хранилища. newStore должен возвращать пустое хранилище.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	ctx := context.Background()

	t.Run("CreateUser and GetUser", func(t *testing.T) {
		store := newStore(t)

		user := &models.User{Username: "alice", PasswordHash: "hash"}
		require.NoError(t, store.CreateUser(ctx, user))
		assert.NotZero(t, user.ID, "ID пользователя должен быть назначен")
		assert.False(t, user.CreatedAt.IsZero())

		byID, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
		assert.Equal(t, "hash", byID.PasswordHash)

		byName, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("CreateUser duplicate", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: "x"}))
		err := store.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: "y"})
		assert.ErrorIs(t, err, storage.ErrUserExists)
	})

	t.Run("GetUser Not Found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetUser(ctx, 424242)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetUserByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetUsers", func(t *testing.T) {
		store := newStore(t)

		a := mustUser(t, store, "carol")
		b := mustUser(t, store, "dave")

		users, err := store.GetUsers(ctx, []int64{a.ID, b.ID, 999999})
		require.NoError(t, err)
		assert.Len(t, users, 2, "несуществующие ID пропускаются")
		assert.Equal(t, "carol", users[a.ID].Username)
		assert.Equal(t, "dave", users[b.ID].Username)

		empty, err := store.GetUsers(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("CreatePost and GetPost", func(t *testing.T) {
		store := newStore(t)
		author := mustUser(t, store, "alice")

		publishedAt := time.Now().UTC().Truncate(time.Microsecond)
		post := &models.Post{
			Title:       "Hello",
			Body:        "World",
			AuthorID:    author.ID,
			PublishedAt: &publishedAt,
		}
		require.NoError(t, store.CreatePost(ctx, post))
		assert.NotZero(t, post.ID, "ID поста должен быть назначен")

		retrieved, err := store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, post.ID, retrieved.ID)
		assert.Equal(t, "Hello", retrieved.Title)
		assert.Equal(t, "World", retrieved.Body)
		assert.Equal(t, author.ID, retrieved.AuthorID)
		require.NotNil(t, retrieved.PublishedAt)
		assert.True(t, publishedAt.Equal(*retrieved.PublishedAt), "время публикации не совпадает")
	})

	t.Run("CreatePost draft", func(t *testing.T) {
		store := newStore(t)
		author := mustUser(t, store, "alice")

		post := &models.Post{Title: "Draft", Body: "wip", AuthorID: author.ID}
		require.NoError(t, store.CreatePost(ctx, post))

		retrieved, err := store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Nil(t, retrieved.PublishedAt)
	})

	t.Run("CreatePost unknown author", func(t *testing.T) {
		store := newStore(t)

		err := store.CreatePost(ctx, &models.Post{Title: "t", Body: "b", AuthorID: 777777})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetPost Not Found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetPost(ctx, 123456)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListPublishedPosts", func(t *testing.T) {
		store := newStore(t)
		author := mustUser(t, store, "alice")

		now := time.Now().UTC().Truncate(time.Microsecond)
		older := mustPost(t, store, author.ID, "older", ptr(now.Add(-2*time.Hour)))
		newest := mustPost(t, store, author.ID, "newest", ptr(now))
		mustPost(t, store, author.ID, "draft", nil)
		middle := mustPost(t, store, author.ID, "middle", ptr(now.Add(-time.Hour)))

		posts, err := store.ListPublishedPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 3, "черновики не должны попадать в ленту")
		assert.Equal(t, newest.ID, posts[0].ID)
		assert.Equal(t, middle.ID, posts[1].ID)
		assert.Equal(t, older.ID, posts[2].ID)
		for _, p := range posts {
			assert.NotNil(t, p.PublishedAt)
		}
	})

	t.Run("ListPublishedPosts same timestamp", func(t *testing.T) {
		store := newStore(t)
		author := mustUser(t, store, "alice")

		at := time.Now().UTC().Truncate(time.Microsecond)
		first := mustPost(t, store, author.ID, "first", ptr(at))
		second := mustPost(t, store, author.ID, "second", ptr(at))

		posts, err := store.ListPublishedPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second.ID, posts[0].ID, "при равном времени сначала более поздний ID")
		assert.Equal(t, first.ID, posts[1].ID)
	})

	t.Run("ListPublishedPosts empty", func(t *testing.T) {
		store := newStore(t)

		posts, err := store.ListPublishedPosts(ctx)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func mustUser(t *testing.T, store storage.Storage, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "hash"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func mustPost(t *testing.T, store storage.Storage, authorID int64, title string, publishedAt *time.Time) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Body: title + " body", AuthorID: authorID, PublishedAt: publishedAt}
	require.NoError(t, store.CreatePost(context.Background(), post))
	return post
}

func ptr(t time.Time) *time.Time {
	return &t
}
