package authentication

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"

	"storybooks/models"
)

const sessionName = "storybooks-session"

// Identity is the caller resolved from the session, attached to the request
// context by RequireAuth. Handlers treat it as a read-only capability token.
type Identity struct {
	UserID uint
	Name   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity attached by RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Sessions manages the cookie session store. It is constructed once in main
// and injected wherever sessions are read or written.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(secret string) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 8,
		HttpOnly: true,
		// Lax rather than Strict: the Google OAuth callback is a top-level
		// cross-site navigation and still needs to carry the cookie.
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// SignIn opens a session for the given user.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, user models.User) error {
	session, _ := s.store.Get(r, sessionName)
	session.Values["userID"] = user.ID
	session.Values["name"] = user.Name
	return session.Save(r, w)
}

// SignOut clears the session.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Identity resolves the caller from the session cookie, if any.
func (s *Sessions) Identity(r *http.Request) (Identity, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return Identity{}, false
	}
	userID, ok := session.Values["userID"].(uint)
	if !ok || userID == 0 {
		return Identity{}, false
	}
	name, _ := session.Values["name"].(string)
	return Identity{UserID: userID, Name: name}, true
}

// RequireAuth is the access guard: requests without a live session are
// redirected to the sign-in page before any handler or store call runs.
// Valid sessions get the resolved identity attached to the request context.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.Identity(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireGuest is the converse gate for the sign-in and registration pages:
// already signed-in callers are sent to their dashboard.
func (s *Sessions) RequireGuest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.Identity(r); ok {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
