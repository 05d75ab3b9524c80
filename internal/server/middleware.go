package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Zachkp/portfolio/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	visitorCookie = "visitor_id"
	formsKey      = "visitorForms"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.GetHeader("HX-Request") == "true" {
			fields = append(fields, zap.Bool("htmx", true))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			s.log.Warn("request", fields...)
		default:
			s.log.Debug("request", fields...)
		}
	}
}

// visitorSession attaches the visitor's forms, issuing a cookie on first contact.
func (s *Server) visitorSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(visitorCookie)
		id, f := s.sessions.Get(cookie)
		if id != cookie {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(visitorCookie, id, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.IsProduction(), true)
		}
		c.Set(formsKey, f)
		c.Next()
	}
}

func formsFrom(c *gin.Context) *session.Forms {
	return c.MustGet(formsKey).(*session.Forms)
}

// untrackedPrefixes are paths visitorTracking never records.
var untrackedPrefixes = []string{"/static/", "/admin/", "/healthz", "/favicon", "/privacy", "/contact", "/inquiry", "/resume"}

// visitorTracking records GET page views with a hashed IP in the
// background. Requests sending DNT: 1 are skipped.
func (s *Server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.visits == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		for _, p := range untrackedPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}
		// Do Not Track
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		ip, ua := c.ClientIP(), c.GetHeader("User-Agent")
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.visits.Record(ctx, ip, ua, path); err != nil {
				s.log.Warn("error recording visitor", zap.Error(err))
			}
		}()
		c.Next()
	}
}
