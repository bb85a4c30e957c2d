package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"storybooks/config"
	"storybooks/controllers/authentication"
	"storybooks/controllers/home"
	"storybooks/controllers/stories"
	"storybooks/views"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("initialize database")
	}
	log.Info("database connected")

	renderer, err := views.New(log)
	if err != nil {
		log.WithError(err).Fatal("parse templates")
	}

	sessions := authentication.NewSessions(cfg.SessionSecret)

	authHandler := &authentication.Handler{
		DB:        db,
		Sessions:  sessions,
		Views:     renderer,
		Log:       log,
		JWTSecret: []byte(cfg.JWTSecret),
	}
	if cfg.GoogleEnabled() {
		authHandler.Google = authentication.GoogleOAuthConfig(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		log.Warn("google sign-in disabled: GOOGLE_* settings missing")
	}

	homeHandler := &home.Handler{
		DB:            db,
		Sessions:      sessions,
		Views:         renderer,
		Log:           log,
		GoogleEnabled: cfg.GoogleEnabled(),
	}
	storyHandler := &stories.Handler{DB: db, Views: renderer, Log: log}

	handler := newRouter(log, sessions, renderer, authHandler, homeHandler, storyHandler)

	log.WithField("port", cfg.Port).Info("server listening")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// newRouter assembles the route table and the middleware chain. Split from
// main so the test suite can serve the exact production routes.
func newRouter(
	log *logrus.Logger,
	sessions *authentication.Sessions,
	renderer *views.Renderer,
	authHandler *authentication.Handler,
	homeHandler *home.Handler,
	storyHandler *stories.Handler,
) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		renderer.NotFound(w, views.Base{})
	})

	r.HandleFunc("/", homeHandler.Landing).Methods(http.MethodGet)
	r.Handle("/dashboard", sessions.RequireAuth(http.HandlerFunc(homeHandler.Dashboard))).
		Methods(http.MethodGet)

	r.Handle("/register", sessions.RequireGuest(http.HandlerFunc(authHandler.ShowRegister))).
		Methods(http.MethodGet)
	r.Handle("/register", sessions.RequireGuest(http.HandlerFunc(authHandler.Register))).
		Methods(http.MethodPost)
	r.Handle("/login", sessions.RequireGuest(http.HandlerFunc(authHandler.ShowLogin))).
		Methods(http.MethodGet)
	r.Handle("/login", sessions.RequireGuest(http.HandlerFunc(authHandler.Login))).
		Methods(http.MethodPost)
	r.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodGet)

	if authHandler.Google != nil {
		r.HandleFunc("/auth/google", authHandler.GoogleLogin).Methods(http.MethodGet)
		r.HandleFunc("/auth/google/callback", authHandler.GoogleCallback).Methods(http.MethodGet)
	}

	s := r.PathPrefix("/stories").Subrouter()
	s.Use(mux.MiddlewareFunc(sessions.RequireAuth))
	s.HandleFunc("", storyHandler.Index).Methods(http.MethodGet)
	s.HandleFunc("", storyHandler.Create).Methods(http.MethodPost)
	s.HandleFunc("/add", storyHandler.AddForm).Methods(http.MethodGet)
	s.HandleFunc("/user/{id:[0-9]+}", storyHandler.UserIndex).Methods(http.MethodGet)
	s.HandleFunc("/edit/{id:[0-9]+}", storyHandler.EditForm).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}", storyHandler.Show).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}", storyHandler.Update).Methods(http.MethodPut)
	s.HandleFunc("/{id:[0-9]+}", storyHandler.Delete).Methods(http.MethodDelete)

	// Method override has to run before mux matches on the verb, and the
	// access log should record the rewritten verb, so both wrap the router.
	var handler http.Handler = r
	handler = methodOverride(handler)
	handler = requestLogger(log)(handler)
	handler = corsSettings().Handler(handler)
	return handler
}
