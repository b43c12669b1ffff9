package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

var roles = []models.Role{models.RoleReader, models.RoleLibrarian}

func (s *Server) newUserPage(c *gin.Context) {
	form := newForm(userFields, nil, nil)
	form.Roles = roles
	s.page(c, http.StatusOK, "user_new.html", "Add a user", form)
}

func (s *Server) createUser(c *gin.Context) {
	sess := sessionFrom(c)
	user := models.User{
		Username:     strings.TrimSpace(c.PostForm("username")),
		Password:     c.PostForm("password"),
		Role:         models.ParseRole(c.PostForm("role")),
		Email:        strings.TrimSpace(c.PostForm("email")),
		FullUsername: strings.TrimSpace(c.PostForm("fullUsername")),
	}

	if err := validation.User(user); err != nil {
		form := newForm(userFields, c.PostForm, err)
		form.Roles = roles
		s.page(c, http.StatusBadRequest, "user_new.html", "Add a user", form)
		return
	}

	if res := sess.Client.AddUser(c.Request.Context(), user); !res.Success {
		sess.Flash("error", "Failed to add user")
		form := newForm(userFields, c.PostForm, nil)
		form.Roles = roles
		s.page(c, http.StatusBadGateway, "user_new.html", "Add a user", form)
		return
	}
	sess.Flash("success", "User successfully saved!")
	redirect(c, "/users/new")
}
