package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// adminAuth requires "Authorization: Bearer <ADMIN_TOKEN>".
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// setupAdminRoutes registers the admin API only when both a token and
// visitor tracking are configured.
func (s *Server) setupAdminRoutes(r *gin.Engine) {
	if s.cfg.AdminToken == "" || s.visits == nil {
		return
	}

	adminGroup := r.Group("/admin/api")
	adminGroup.Use(s.adminAuth())

	adminGroup.GET("/stats", func(c *gin.Context) {
		stats, err := s.visits.Stats(c.Request.Context())
		if err != nil {
			s.log.Error("error loading admin stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"visits":          stats,
			"active_sessions": s.sessions.Len(),
		})
	})

	// Privacy cleanup on demand
	adminGroup.POST("/cleanup", func(c *gin.Context) {
		n, err := s.visits.Cleanup(c.Request.Context(), s.cfg.VisitRetention)
		if err != nil {
			s.log.Error("error cleaning visits", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		s.log.Info("privacy cleanup by admin", zap.Int64("rows", n), zap.String("from", s.visits.HashIP(c.ClientIP())))
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})
}
