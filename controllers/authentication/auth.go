package authentication

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"storybooks/models"
	"storybooks/views"
)

// Handler serves registration, local sign-in, and Google sign-in.
type Handler struct {
	DB       *gorm.DB
	Sessions *Sessions
	Views    *views.Renderer
	Log      *logrus.Logger

	// Google is nil when Google sign-in is not configured.
	Google    *oauth2.Config
	JWTSecret []byte
}

func (h *Handler) googleEnabled() bool {
	return h.Google != nil
}

func (h *Handler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.Views.Render(w, "auth/register", views.RegisterPage{})
}

// Register creates a local account and opens a session for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	if name == "" || email == "" || len(password) < 8 {
		h.Views.RenderStatus(w, http.StatusBadRequest, "auth/register", views.RegisterPage{
			Error: "Name and email are required and the password must be at least 8 characters",
		})
		return
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		h.Views.RenderStatus(w, http.StatusConflict, "auth/register", views.RegisterPage{
			Error: "Email already registered",
		})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Log.WithError(err).Error("look up existing user")
		h.Views.ServerError(w, views.Base{})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.WithError(err).Error("hash password")
		h.Views.ServerError(w, views.Base{})
		return
	}

	user := models.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
		Provider: "local",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		h.Log.WithError(err).Error("create user")
		h.Views.ServerError(w, views.Base{})
		return
	}

	if err := h.Sessions.SignIn(w, r, user); err != nil {
		h.Log.WithError(err).Error("save session")
		h.Views.ServerError(w, views.Base{})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.Views.Render(w, "auth/login", views.LoginPage{GoogleEnabled: h.googleEnabled()})
}

// Login verifies a local account's password and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	var user models.User
	err := h.DB.Where("email = ? AND provider = ?", email, "local").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.loginRejected(w)
		return
	} else if err != nil {
		h.Log.WithError(err).Error("look up user")
		h.Views.ServerError(w, views.Base{})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		h.loginRejected(w)
		return
	}

	if err := h.Sessions.SignIn(w, r, user); err != nil {
		h.Log.WithError(err).Error("save session")
		h.Views.ServerError(w, views.Base{})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// loginRejected renders the same response for an unknown email and a wrong
// password so the form does not reveal which accounts exist.
func (h *Handler) loginRejected(w http.ResponseWriter) {
	h.Views.RenderStatus(w, http.StatusUnauthorized, "auth/login", views.LoginPage{
		GoogleEnabled: h.googleEnabled(),
		Error:         "Invalid email or password",
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SignOut(w, r); err != nil {
		h.Log.WithError(err).Error("clear session")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
