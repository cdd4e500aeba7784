package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ButyrinIA/blog/internal/auth"
	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/loader"
	"github.com/ButyrinIA/blog/internal/metrics"
	"github.com/ButyrinIA/blog/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	cfg     *config.Config
	storage storage.Storage
	auth    *auth.Manager
	metrics *metrics.Metrics
	views   views
	handler http.Handler
	now     func() time.Time
}

func New(cfg *config.Config, storage storage.Storage) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		storage: storage,
		auth:    auth.NewManager(cfg.Auth),
		metrics: metrics.New(),
		views:   v,
		now:     time.Now,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// HTML-страницы проходят CSRF-проверку, JSON API и служебные маршруты - нет
	page := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, otelhttp.NewHandler(s.metrics.Instrument(name, s.auth.CSRF(h)), "blog."+name))
	}
	api := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, otelhttp.NewHandler(s.metrics.Instrument(name, h), "blog."+name))
	}

	page("GET /{$}", "posts", s.handlePosts)
	page("GET /post/{id}/{$}", "post_detail", s.handlePostDetail)
	page("GET /post/create/{$}", "post_create", s.handlePostCreate)
	page("POST /post/create/{$}", "post_create", s.handlePostCreate)
	page("GET /login/{$}", "login", s.handleLogin)
	page("POST /login/{$}", "login", s.handleLogin)
	page("POST /logout/{$}", "logout", s.handleLogout)
	page("GET /", "not_found", s.notFound)

	api("POST /token", "token", http.HandlerFunc(s.handleToken))
	api("GET /healthz", "healthz", http.HandlerFunc(s.handleHealth))
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.auth.Middleware(loader.Middleware(s.storage, mux))
}

// Run блокируется до остановки сервера. Отмена ctx запускает плавное завершение.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Сервер слушает на %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Остановка сервера")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
