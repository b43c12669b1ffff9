// Package web serves the library admin pages. Each signed-in browser gets
// its own API client and books grid; all backend traffic goes through them.
package web

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/circuitbreaker"
	"libadmin/pkg/grid"
	"libadmin/pkg/inflight"
	"libadmin/pkg/logging"
)

const ctxSession = "session"

type Options struct {
	BackendURL       string
	Timeout          time.Duration
	SoftDeleteStatus int
	// Breaker is shared by every session's client.
	Breaker *circuitbreaker.CircuitBreaker

	SessionTTL   time.Duration
	CookieName   string
	SecureCookie bool

	PageSize int
	// Notice is markdown shown on the home page.
	Notice string

	Logger logging.Logger
}

type Server struct {
	opts     Options
	sessions *SessionStore
	renderer *renderer
	guard    *inflight.Guard
	notice   template.HTML
	logger   logging.Logger
}

func New(opts Options) (*Server, error) {
	opts.Logger = logging.OrNop(opts.Logger)
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.CookieName == "" {
		opts.CookieName = "libadmin_session"
	}
	if opts.PageSize == 0 {
		opts.PageSize = grid.DefaultPageSize
	}

	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	notice, err := RenderNotice(opts.Notice)
	if err != nil {
		return nil, err
	}

	return &Server{
		opts:     opts,
		sessions: NewSessionStore(opts.SessionTTL),
		renderer: r,
		guard:    inflight.NewGuard(),
		notice:   notice,
		logger:   opts.Logger,
	}, nil
}

func (s *Server) Sessions() *SessionStore { return s.sessions }

// newClient builds the API client for one signed-in user.
func (s *Server) newClient() *apiclient.Client {
	opts := []apiclient.Option{apiclient.WithLogger(s.logger)}
	if s.opts.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(s.opts.Timeout))
	}
	if s.opts.SoftDeleteStatus != 0 {
		opts = append(opts, apiclient.WithSoftDeleteStatus(s.opts.SoftDeleteStatus))
	}
	if s.opts.Breaker != nil {
		opts = append(opts, apiclient.WithBreaker(s.opts.Breaker))
	}
	return apiclient.NewClient(s.opts.BackendURL, opts...)
}

// Router wires every page onto a gin engine with request logging and panic
// recovery.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/manage/health", s.healthCheck)
	router.GET("/", s.index)
	router.GET("/login", s.loginPage)
	router.POST("/login", s.login)
	router.POST("/logout", s.logout)

	authed := router.Group("/", s.requireSession())
	authed.GET("/home", s.home)
	authed.GET("/loans/mine", s.myLoans)

	librarian := authed.Group("/", s.requireLibrarian())
	librarian.GET("/books", s.booksPage)
	librarian.POST("/books/add", s.addRow)
	librarian.POST("/books/:row/edit", s.editRow)
	librarian.POST("/books/:row/save", s.saveRow)
	librarian.POST("/books/:row/cancel", s.cancelRow)
	librarian.POST("/books/:row/delete", s.deleteRow)
	librarian.GET("/books/new", s.newBookPage)
	librarian.POST("/books/new", s.createBook)
	librarian.GET("/loans", s.loansPage)
	librarian.POST("/loans/:id/accept", s.acceptLoan)
	librarian.POST("/loans/:id/return", s.returnLoan)
	librarian.GET("/loans/new", s.newLoanPage)
	librarian.POST("/loans/new", s.createLoan)
	librarian.GET("/users/new", s.newUserPage)
	librarian.POST("/users/new", s.createUser)

	reader := authed.Group("/", s.requireReader())
	reader.GET("/catalog", s.catalogPage)
	reader.POST("/catalog/:id/borrow", s.borrow)

	return router
}

// Run serves until ctx is cancelled, sweeping expired sessions meanwhile.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("Shutdown failed: %v", err)
				}
				return
			case <-ticker.C:
				if n := s.sessions.Sweep(); n > 0 {
					s.logger.Info("expired sessions dropped", "count", n)
				}
			}
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// healthCheck reports live sessions and the actions still waiting on the
// backend.
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "UP",
		"sessions": s.sessions.Len(),
		"inflight": s.guard.Keys(),
	})
}

func (s *Server) page(c *gin.Context, status int, name, title string, data any) {
	sess := sessionFrom(c)
	pd := PageData{Title: title, CurrentPath: c.Request.URL.Path, Session: sess, Data: data}
	if sess != nil {
		pd.Flash = sess.PopFlash()
	}
	if err := s.renderer.render(c.Writer, status, name, pd); err != nil {
		s.logger.Error("render failed", "page", name, "error", err)
	}
}

// redirect ends a POST with a see-other redirect.
func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
