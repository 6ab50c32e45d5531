package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestLogger logs each request through the application logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.logger.Error("request failed", fields)
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			s.logger.Debug("request", fields)
		default:
			s.logger.Info("request", fields)
		}
	}
}

// session resolves the session cookie, issuing a new id when it is missing
// or not a UUID.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(s.cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     s.cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
