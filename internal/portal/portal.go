// Package portal is the web front end: marketing pages, the auth pages, the
// dashboard shell, and the tool page, all rendered server-side against the
// platform API.
package portal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mtp-io/toolportal/internal/authstate"
	"github.com/mtp-io/toolportal/internal/config"
	"github.com/mtp-io/toolportal/internal/lifecycle"
	"github.com/mtp-io/toolportal/internal/platform"
	"github.com/mtp-io/toolportal/internal/tokenstore"
)

const (
	sidCookieName = "mtp_portal_sid"
	idleTimeout   = 24 * time.Hour
)

//go:embed templates/*.html
var templateFS embed.FS

// Portal serves the white-label tool front end.
type Portal struct {
	templates map[string]*template.Template
	config    *config.Config
	db        *sql.DB
	registry  *sessionRegistry
	log       *logrus.Entry
}

// New builds a Portal. db backs the per-session token store; a nil db keeps
// tokens in memory only.
func New(cfg *config.Config, db *sql.DB, log *logrus.Entry) (*Portal, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	funcs := template.FuncMap{
		"dollars": func(cents int64) string {
			return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
		},
	}
	templates := make(map[string]*template.Template)
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		if page == "templates/base.html" {
			continue
		}
		ts, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/base.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page[len("templates/"):]] = ts
	}

	return &Portal{
		templates: templates,
		config:    cfg,
		db:        db,
		registry:  newSessionRegistry(),
		log:       log,
	}, nil
}

// Routes builds the portal's router.
func (p *Portal) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*.mtp.tools", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes.
	r.Get("/", p.handleHome)
	r.Get("/auth", p.handleAuthPage)
	r.Get("/vendor/auth", p.handleVendorAuthPage)
	r.Post("/auth/login", p.handleLoginPost)
	r.Post("/auth/signup", p.handleSignupPost)
	r.Get("/auth/oauth/{provider}", p.handleOAuthStart)
	r.Get("/third-party/{provider}/callback", p.handleOAuthCallback)
	r.Get("/tools/{slug}", p.handleTool)
	r.Post("/tools/{slug}/connect", p.handleConnectTool)
	r.Post("/tools/{slug}/purchase", p.handlePurchaseTool)
	r.Post("/logout", p.handleLogout)

	// Dashboard routes require a signed-in session.
	r.Group(func(r chi.Router) {
		r.Use(p.requireSession)
		r.Get("/dashboard", p.handleDashboard)
		r.Get("/dashboard/billing", p.handleBilling)
		r.Get("/dashboard/credits", p.handleCredits)
		r.Post("/dashboard/credits/{packID}/purchase", p.handlePurchaseCredits)
		r.Get("/dashboard/support", p.handleSupport)
		r.Post("/dashboard/support", p.handleCreateTicket)
		r.Get("/dashboard/profile", p.handleProfile)
		r.Post("/dashboard/profile", p.handleUpdateProfile)
		r.Get("/dashboard/tokens", p.handleTokens)
		r.Post("/dashboard/tokens/create", p.handleCreateToken)
		r.Post("/dashboard/tokens/{id}/regenerate", p.handleRegenerateToken)
		r.Post("/dashboard/tokens/{id}/revoke", p.handleRevokeToken)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		p.renderTemplate(w, req, "404.html", "Not Found", map[string]interface{}{
			"Path": req.URL.Path,
		})
	})

	return r
}

// Run serves the portal and evicts idle sessions until ctx is cancelled.
func (p *Portal) Run(ctx context.Context) error {
	go p.evictIdleSessions(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", p.config.PortalPort),
		Handler: p.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	p.log.WithField("port", p.config.PortalPort).Info("starting portal server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (p *Portal) evictIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range p.registry.evictIdle(time.Now().Add(-idleTimeout)) {
				s.teardown()
				p.log.WithField("session_id", s.id).Debug("evicted idle session")
			}
		}
	}
}

// newSession builds the full per-browser auth stack: platform client, token
// store, lifecycle manager, and auth state, each constructed explicitly and
// wired by reference.
func (p *Portal) newSession(ctx context.Context) (*session, error) {
	sid := uuid.NewString()
	sess := &session{id: sid, lastSeen: time.Now()}

	client, err := platform.NewClient(platform.Options{
		BaseURL: p.config.Platform.BaseURL,
		APIKey:  p.config.Platform.APIKey,
		Timeout: time.Duration(p.config.Platform.TimeoutSeconds) * time.Second,
		Logger:  p.log.WithField("session_id", sid),
	})
	if err != nil {
		return nil, err
	}

	var store tokenstore.Store
	if p.db != nil {
		store = tokenstore.NewSQLite(p.db, sid, client)
	} else {
		store = tokenstore.NewMemory(client)
	}

	manager := lifecycle.NewManager(lifecycle.ManagerOptions{
		Store:     store,
		API:       client,
		Sink:      client,
		Navigator: sess,
		Role: func() platform.Role {
			if user := sess.auth.User(); user != nil {
				return user.Role
			}
			return platform.RoleUser
		},
		CurrentPath: sess.CurrentPath,
		Logger:      p.log.WithField("session_id", sid),
	})
	client.SetUnauthorizedHook(func(ctx context.Context) {
		manager.HandleUnauthorized(ctx, sess.CurrentPath())
	})

	sess.auth = authstate.New(authstate.Options{
		Client:   client,
		Store:    store,
		Manager:  manager,
		Notifier: sess,
		Origin:   p.origin(),
		Logger:   p.log.WithField("session_id", sid),
	})
	sess.teardown = sess.auth.Teardown

	sess.auth.Init(ctx)
	p.registry.put(sess)
	return sess, nil
}

func (p *Portal) origin() string {
	scheme := "http"
	if p.config.Cookie.Secure {
		scheme = "https"
	}
	if p.config.Cookie.Domain != "" {
		return scheme + "://" + p.config.Cookie.Domain
	}
	return fmt.Sprintf("%s://localhost:%d", scheme, p.config.PortalPort)
}

// currentSession returns the live session for the request, if any.
func (p *Portal) currentSession(r *http.Request) (*session, bool) {
	cookie, err := r.Cookie(sidCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return p.registry.get(cookie.Value)
}

// ensureSession returns the request's session, creating one when needed and
// setting the session cookie.
func (p *Portal) ensureSession(w http.ResponseWriter, r *http.Request) (*session, error) {
	if sess, ok := p.currentSession(r); ok {
		return sess, nil
	}
	// The session outlives this request, so the lifecycle manager must not
	// inherit the request context.
	sess, err := p.newSession(context.Background())
	if err != nil {
		return nil, err
	}
	p.setSessionCookie(w, sess.id, time.Now().Add(idleTimeout))
	return sess, nil
}

func (p *Portal) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    value,
		Path:     "/",
		Domain:   p.config.Cookie.Domain,
		HttpOnly: true,
		Secure:   p.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// requireSession gates dashboard routes: no session or no signed-in user
// means a redirect to sign-in carrying the original path. It also delivers
// any navigation parked by the lifecycle manager.
func (p *Portal) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := p.currentSession(r)
		if !ok {
			http.Redirect(w, r, "/auth?redirect="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		sess.touch(r.URL.Path)

		if target := sess.takeRedirect(); target != "" {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		if sess.auth.User() == nil {
			http.Redirect(w, r, "/auth?redirect="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Portal) renderTemplate(w http.ResponseWriter, r *http.Request, name, title string, data map[string]interface{}) {
	ts, ok := p.templates[name]
	if !ok {
		p.log.WithField("template", name).Error("template not found")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["Title"] = title
	data["ToolName"] = p.config.Tool.Name

	if sess, ok := p.currentSession(r); ok {
		data["Notices"] = sess.takeNotices()
		if user := sess.auth.User(); user != nil {
			data["User"] = user
		}
	}

	if err := ts.ExecuteTemplate(w, "base.html", data); err != nil {
		p.log.WithField("template", name).WithError(err).Error("template render failed")
	}
}
