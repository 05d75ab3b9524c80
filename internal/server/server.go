package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/visits"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Deps are the collaborators a Server needs. Visits may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Sessions *session.Store
	Visits   *visits.Store
	Resume   *content.Resume
}

type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	sessions *session.Store
	visits   *visits.Store
	resume   *content.Resume
	engine   *gin.Engine

	// background visit writes
	bg sync.WaitGroup
}

func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Sessions == nil || d.Resume == nil {
		return nil, errors.New("server: config, sessions and resume are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &Server{
		cfg:      d.Config,
		log:      d.Logger,
		sessions: d.Sessions,
		visits:   d.Visits,
		resume:   d.Resume,
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(static))
	s.routes(r)
	s.engine = r
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	site := r.Group("/")
	site.Use(s.visitorTracking(), s.visitorSession())

	// Home page route
	site.GET("/", s.handleHome)
	site.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy", gin.H{"title": "Privacy Policy", "name": s.resume.Name})
	})
	site.GET("/resume", func(c *gin.Context) {
		c.Redirect(http.StatusFound, s.cfg.ResumeAssetURL)
	})

	// HTMX form endpoints
	site.POST("/contact/field", s.handleContactField)
	site.POST("/contact", s.handleContactSubmit)
	site.GET("/contact/status", s.handleContactStatus)
	site.POST("/inquiry/field", s.handleInquiryField)
	site.POST("/inquiry", s.handleInquirySubmit)
	site.GET("/inquiry/status", s.handleInquiryStatus)

	s.setupAdminRoutes(r)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.bg.Wait()
	s.log.Info("server stopped")
	return err
}

// RunJanitor sweeps idle visitor sessions and, when tracking is enabled,
// prunes visits past retention until ctx is cancelled.
func (s *Server) RunJanitor(ctx context.Context, sweepEvery, cleanupEvery time.Duration) error {
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	s.cleanupVisits(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.log.Debug("expired visitor sessions", zap.Int("count", n))
			}
		case <-cleanup.C:
			s.cleanupVisits(ctx)
		}
	}
}

func (s *Server) cleanupVisits(ctx context.Context) {
	if s.visits == nil {
		return
	}
	n, err := s.visits.Cleanup(ctx, s.cfg.VisitRetention)
	if err != nil {
		s.log.Warn("visit cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("privacy cleanup removed old visits", zap.Int64("rows", n))
	}
}

func (s *Server) handleHome(c *gin.Context) {
	f := formsFrom(c)
	c.HTML(http.StatusOK, "index", gin.H{
		"resume":   s.resume,
		"photoURL": s.cfg.ProfilePhotoURL,
		"year":     time.Now().Year(),
		"contact":  s.contactData(f.Contact.Snapshot()),
		"inquiry":  s.inquiryData(f.Inquiry.Snapshot()),
	})
}
