package authentication

import (
	"errors"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"storybooks/models"
	"storybooks/views"
)

// GoogleOAuthConfig builds the auth-code flow configuration for Google
// sign-in.
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

const stateTTL = 10 * time.Minute

// GoogleLogin starts the auth-code flow. The state parameter is a signed,
// short-lived token so the callback can reject forged requests.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.signState()
	if err != nil {
		h.Log.WithError(err).Error("sign oauth state")
		h.Views.ServerError(w, views.Base{})
		return
	}
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback exchanges the auth code, fetches the Google profile, and
// signs the matching local user in, creating one on first sign-in. OAuth
// failures send the caller back to the landing page.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.verifyState(r.FormValue("state")) {
		h.Log.Warn("invalid oauth state")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	ctx := r.Context()
	token, err := h.Google.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		h.Log.WithError(err).Error("exchange oauth code")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	svc, err := oauth2v2.NewService(ctx, option.WithTokenSource(h.Google.TokenSource(ctx, token)))
	if err != nil {
		h.Log.WithError(err).Error("create userinfo service")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil || info.Id == "" || info.Email == "" {
		h.Log.WithError(err).Error("fetch userinfo")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user, err := h.findOrCreateGoogleUser(info)
	if err != nil {
		h.Log.WithError(err).Error("materialize google user")
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

// findOrCreateGoogleUser looks the account up by Google ID, links an
// existing local account with the same email, or creates a fresh user.
func (h *Handler) findOrCreateGoogleUser(info *oauth2v2.Userinfo) (models.User, error) {
	var user models.User
	err := h.DB.Where("google_id = ?", info.Id).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	err = h.DB.Where("email = ?", info.Email).First(&user).Error
	if err == nil {
		user.GoogleID = info.Id
		if err := h.DB.Model(&user).Update("google_id", info.Id).Error; err != nil {
			return models.User{}, err
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	user = models.User{
		Name:     info.Name,
		Email:    info.Email,
		Provider: "google",
		GoogleID: info.Id,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

type stateClaims struct {
	jwt.StandardClaims
}

func (h *Handler) signState() (string, error) {
	claims := stateClaims{jwt.StandardClaims{
		ExpiresAt: time.Now().Add(stateTTL).Unix(),
		Subject:   "oauth-state",
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.JWTSecret)
}

func (h *Handler) verifyState(state string) bool {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.JWTSecret, nil
	})
	return err == nil && token.Valid && claims.Subject == "oauth-state"
}
