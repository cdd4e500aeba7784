package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/ButyrinIA/blog/internal/auth"
	"github.com/ButyrinIA/blog/internal/forms"
	"github.com/ButyrinIA/blog/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"posts.html", "post_detail.html", "post_create.html", "login.html", "error.html"}

type views map[string]*template.Template

type postView struct {
	*models.Post
	Author string
}

type pageData struct {
	User       *auth.Identity
	CSRFToken  string
	Posts      []postView
	Post       *postView
	PostForm   *forms.PostForm
	LoginForm  *forms.LoginForm
	Next       string
	Status     int
	StatusText string
}

var funcs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("January 2, 2006, 15:04")
	},
}

func loadViews() (views, error) {
	v := make(views, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		v[page] = t
	}
	return v, nil
}

func newPageData(r *http.Request) *pageData {
	user, _ := auth.UserFromContext(r.Context())
	return &pageData{
		User:      user,
		CSRFToken: auth.CSRFToken(r.Context()),
	}
}

// render сначала исполняет шаблон в буфер, чтобы ошибка шаблона не оставила
// полуотправленный ответ.
func (s *Server) render(w http.ResponseWriter, status int, page string, data *pageData) {
	t, ok := s.views[page]
	if !ok {
		log.Printf("Шаблон %s не найден", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Printf("Ошибка рендеринга шаблона %s: %v", page, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	data := newPageData(r)
	data.Status = status
	data.StatusText = http.StatusText(status)
	s.render(w, status, "error.html", data)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("Ошибка обработки %s %s: %v", r.Method, r.URL.Path, err)
	s.renderError(w, r, http.StatusInternalServerError)
}
