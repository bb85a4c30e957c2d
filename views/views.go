package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"storybooks/models"
)

//go:embed templates
var files embed.FS

// pages lists every template under templates/ that is rendered as a full
// page inside the shared layout.
var pages = []string{
	"home/landing",
	"home/dashboard",
	"auth/login",
	"auth/register",
	"stories/index",
	"stories/show",
	"stories/add",
	"stories/edit",
	"errors/404",
	"errors/500",
}

var funcs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006 3:04 PM")
	},
	"truncate": func(n int, s string) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// Renderer executes named page templates inside the shared layout. Pages
// are rendered into a buffer first so a template failure can still produce
// a server-error response instead of a half-written page.
type Renderer struct {
	templates map[string]*template.Template
	log       *logrus.Logger
}

func New(log *logrus.Logger) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template, len(pages)),
		log:       log,
	}
	for _, page := range pages {
		t, err := template.New("layout").Funcs(funcs).ParseFS(files,
			"templates/layouts/main.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.templates[page] = t
	}
	return r, nil
}

func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) {
	r.RenderStatus(w, http.StatusOK, name, data)
}

func (r *Renderer) RenderStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	t, ok := r.templates[name]
	if !ok {
		r.log.WithField("template", name).Error("unknown template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.WithField("template", name).WithError(err).Error("render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound renders the not-found page.
func (r *Renderer) NotFound(w http.ResponseWriter, base Base) {
	r.RenderStatus(w, http.StatusNotFound, "errors/404", ErrorPage{Base: base})
}

// ServerError renders the generic failure page. Every infrastructure or
// validation failure in the handlers ends up here.
func (r *Renderer) ServerError(w http.ResponseWriter, base Base) {
	r.RenderStatus(w, http.StatusInternalServerError, "errors/500", ErrorPage{Base: base})
}

// Base carries the signed-in identity into the layout's navigation. A zero
// UserID renders the signed-out navigation.
type Base struct {
	UserID   uint
	UserName string
}

type ErrorPage struct {
	Base
}

type LandingPage struct {
	Base
	GoogleEnabled bool
}

type LoginPage struct {
	Base
	GoogleEnabled bool
	Error         string
}

type RegisterPage struct {
	Base
	Error string
}

type StoriesPage struct {
	Base
	Stories []models.Story
}

type StoryPage struct {
	Base
	Story models.Story
}

type StoryFormPage struct {
	Base
	Story models.Story
}
