// Package loader группирует запросы авторов в пределах одного HTTP-запроса.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey string

const loadersKey ctxKey = "loaders"

type UserGetter interface {
	GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error)
}

type Loaders struct {
	Users *dataloader.Loader[int64, *models.User]
}

func New(users UserGetter) *Loaders {
	batch := func(ctx context.Context, ids []int64) []*dataloader.Result[*models.User] {
		found, err := users.GetUsers(ctx, ids)

		// Результаты должны идти в том же порядке, что и ключи
		results := make([]*dataloader.Result[*models.User], len(ids))
		for i, id := range ids {
			switch {
			case err != nil:
				results[i] = &dataloader.Result[*models.User]{Error: err}
			case found[id] == nil:
				results[i] = &dataloader.Result[*models.User]{Error: fmt.Errorf("user %d: %w", id, storage.ErrNotFound)}
			default:
				results[i] = &dataloader.Result[*models.User]{Data: found[id]}
			}
		}
		return results
	}

	return &Loaders{
		Users: dataloader.NewBatchedLoader(batch),
	}
}

// Middleware создаёт свежий набор загрузчиков на каждый запрос, чтобы кэш
// не переживал запрос.
func Middleware(users UserGetter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), loadersKey, New(users))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// Authors загружает авторов для набора постов одним батчем. Отсутствующие
// авторы в результат не попадают, ошибка хранилища возвращается как есть.
func Authors(ctx context.Context, users UserGetter, posts []*models.Post) (map[int64]*models.User, error) {
	l := For(ctx)
	if l == nil {
		l = New(users)
	}

	seen := make(map[int64]struct{}, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	authors, errs := l.Users.LoadMany(ctx, ids)()
	result := make(map[int64]*models.User, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load author %d: %w", id, errs[i])
		}
		if i < len(authors) && authors[i] != nil {
			result[id] = authors[i]
		}
	}
	return result, nil
}
