package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ButyrinIA/blog/internal/auth"
	"github.com/ButyrinIA/blog/internal/forms"
	"github.com/ButyrinIA/blog/internal/loader"
	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
)

const loginErrorMessage = "Please enter a correct username and password. Note that both fields may be case-sensitive."

// handlePosts - лента опубликованных постов, новые сверху.
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.storage.ListPublishedPosts(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	authors, err := loader.Authors(r.Context(), s.storage, posts)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	data := newPageData(r)
	data.Posts = make([]postView, len(posts))
	for i, p := range posts {
		data.Posts[i] = postView{Post: p, Author: authorName(authors, p.AuthorID)}
	}
	s.render(w, http.StatusOK, "posts.html", data)
}

func (s *Server) handlePostDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.notFound(w, r)
		return
	}

	post, err := s.storage.GetPost(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	authors, err := loader.Authors(r.Context(), s.storage, []*models.Post{post})
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	data := newPageData(r)
	data.Post = &postView{Post: post, Author: authorName(authors, post.AuthorID)}
	s.render(w, http.StatusOK, "post_detail.html", data)
}

// handlePostCreate показывает форму на GET и сохраняет пост на POST.
// Пост публикуется сразу, автор - текущий пользователь.
func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		redirectToLogin(w, r)
		return
	}

	data := newPageData(r)
	if r.Method != http.MethodPost {
		data.PostForm = forms.NewPostForm(nil)
		s.render(w, http.StatusOK, "post_create.html", data)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := forms.NewPostForm(r.PostForm)
	if !form.Validate() {
		data.PostForm = form
		s.render(w, http.StatusOK, "post_create.html", data)
		return
	}

	now := s.now().UTC()
	post := &models.Post{
		Title:       form.Title,
		Body:        form.Body,
		AuthorID:    user.ID,
		PublishedAt: &now,
	}
	err := s.storage.CreatePost(r.Context(), post)
	if errors.Is(err, storage.ErrNotFound) {
		// Пользователь из токена больше не существует
		s.auth.ClearSession(w)
		redirectToLogin(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.metrics.PostsCreated.Inc()
	log.Printf("Пользователь %s создал пост %d", user.Username, post.ID)
	http.Redirect(w, r, fmt.Sprintf("/post/%d/", post.ID), http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r)
	if r.Method != http.MethodPost {
		data.LoginForm = forms.NewLoginForm(nil)
		data.Next = r.URL.Query().Get("next")
		s.render(w, http.StatusOK, "login.html", data)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := forms.NewLoginForm(r.PostForm)
	data.LoginForm = form
	data.Next = r.PostForm.Get("next")

	if !form.Validate() {
		s.render(w, http.StatusOK, "login.html", data)
		return
	}

	user, err := auth.Authenticate(r.Context(), s.storage, form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.metrics.LoginFailures.Inc()
		form.Password = ""
		form.Errors.Add("", loginErrorMessage)
		s.render(w, http.StatusOK, "login.html", data)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.auth.SetSession(w, token)
	log.Printf("Пользователь %s вошёл в систему", user.Username)
	http.Redirect(w, r, safeRedirect(data.Next), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleToken выдаёт JWT для клиентов, которые передают его в заголовке Authorization.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := auth.Authenticate(r.Context(), s.storage, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.metrics.LoginFailures.Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Ошибка аутентификации: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		log.Printf("Ошибка генерации токена: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login/?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
}

// safeRedirect пропускает только локальные пути.
func safeRedirect(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func authorName(authors map[int64]*models.User, id int64) string {
	if u, ok := authors[id]; ok {
		return u.Username
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
