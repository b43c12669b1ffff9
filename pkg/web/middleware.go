package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/models"
)

func sessionFrom(c *gin.Context) *UserSession {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*UserSession)
	return sess
}

func (s *Server) lookupSession(c *gin.Context) (*UserSession, bool) {
	id, err := c.Cookie(s.opts.CookieName)
	if err != nil || id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

func (s *Server) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.CookieName, value, maxAge, "/", "", s.opts.SecureCookie, true)
}

// requireSession sends anonymous or expired visitors to the login page.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookupSession(c)
		if !ok {
			s.setCookie(c, "", -1)
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Set(ctxSession, sess)
		c.Next()
	}
}

func (s *Server) requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		if sess == nil || sess.Role != role {
			if sess != nil {
				sess.Flash("error", "You are not allowed to open that page.")
			}
			c.Redirect(http.StatusSeeOther, "/home")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requireLibrarian() gin.HandlerFunc { return s.requireRole(models.RoleLibrarian) }

func (s *Server) requireReader() gin.HandlerFunc { return s.requireRole(models.RoleReader) }
