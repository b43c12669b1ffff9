package web

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/grid"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

type loginView struct {
	Username string
	Error    string
	Fields   validation.FieldErrors
}

type homeView struct {
	Notice template.HTML
}

func (s *Server) index(c *gin.Context) {
	if _, ok := s.lookupSession(c); ok {
		c.Redirect(http.StatusFound, "/home")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) loginPage(c *gin.Context) {
	if _, ok := s.lookupSession(c); ok {
		c.Redirect(http.StatusFound, "/home")
		return
	}
	s.page(c, http.StatusOK, "login.html", "Sign in", loginView{})
}

// login authenticates against the backend with a fresh client, then asks
// who the user is so pages can be chosen by role.
func (s *Server) login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	view := loginView{Username: username}

	if err := validation.Login(username, password); err != nil {
		var fields validation.FieldErrors
		errors.As(err, &fields)
		view.Fields = fields
		s.page(c, http.StatusBadRequest, "login.html", "Sign in", view)
		return
	}

	ctx := c.Request.Context()
	client := s.newClient()
	if res := client.Login(ctx, models.Credentials{Login: username, Password: password}); !res.Success {
		view.Error = "Invalid username or password."
		if res.StatusCode == 0 || res.StatusCode >= 500 {
			view.Error = "The library service is unavailable, try again later."
		}
		s.page(c, http.StatusUnauthorized, "login.html", "Sign in", view)
		return
	}

	role := client.GetCurrentUserRole(ctx)
	id := client.GetCurrentUserID(ctx)
	if !role.Success || !id.Success || !role.Data.Valid() {
		s.logger.Warn("could not resolve user after login", "user", username, "roleStatus", role.StatusCode, "idStatus", id.StatusCode)
		client.Logout()
		view.Error = "Could not load your account, try again later."
		s.page(c, http.StatusBadGateway, "login.html", "Sign in", view)
		return
	}

	sess := s.sessions.Create(&UserSession{
		Username: username,
		UserID:   id.Data,
		Role:     role.Data,
		Client:   client,
		Books:    grid.NewBooksGrid(client, s.logger),
	})
	s.setCookie(c, sess.ID, int(s.opts.SessionTTL.Seconds()))
	s.logger.Info("user signed in", "user", username, "role", role.Data)
	redirect(c, "/home")
}

func (s *Server) logout(c *gin.Context) {
	if sess, ok := s.lookupSession(c); ok {
		s.sessions.Delete(sess.ID)
	}
	s.setCookie(c, "", -1)
	redirect(c, "/login")
}

func (s *Server) home(c *gin.Context) {
	s.page(c, http.StatusOK, "home.html", "Home", homeView{Notice: s.notice})
}
