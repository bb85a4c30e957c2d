// Package home serves the landing page and the signed-in dashboard.
package home

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"storybooks/controllers/authentication"
	"storybooks/models"
	"storybooks/views"
)

type Handler struct {
	DB            *gorm.DB
	Sessions      *authentication.Sessions
	Views         *views.Renderer
	Log           *logrus.Logger
	GoogleEnabled bool
}

// Landing shows the sign-in entry points; signed-in callers go straight to
// their dashboard.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Sessions.Identity(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.Views.Render(w, "home/landing", views.LandingPage{GoogleEnabled: h.GoogleEnabled})
}

// Dashboard lists the caller's own stories in every status, newest first.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := authentication.IdentityFrom(r.Context())
	base := views.Base{UserID: id.UserID, UserName: id.Name}

	var list []models.Story
	err := h.DB.Where("user_id = ?", id.UserID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		h.Log.WithError(err).Error("list own stories")
		h.Views.ServerError(w, base)
		return
	}
	h.Views.Render(w, "home/dashboard", views.StoriesPage{Base: base, Stories: list})
}
