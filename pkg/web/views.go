package web

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/grid"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

type rowView struct {
	ID        string
	Cells     []grid.Cell
	Editing   bool
	IsNew     bool
	OutOfSync bool
	Busy      bool
	Deleted   bool
}

type tableView struct {
	Heading    string
	Headers    []string
	Page       grid.Page[rowView]
	Query      string
	PageSizes  []int
	ActionBase string
	CanAdd     bool
}

func headers[T any](cols []grid.Column[T]) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Label
	}
	return out
}

func rowViews[T any](rows []grid.Row[T], cols []grid.Column[T], deleted func(T) bool) []rowView {
	views := make([]rowView, len(rows))
	for i, r := range rows {
		views[i] = rowView{
			ID:        r.ID,
			Cells:     grid.Evaluate(cols, r),
			Editing:   r.Editing(),
			IsNew:     r.IsNew,
			OutOfSync: r.OutOfSync,
			Busy:      r.Busy,
		}
		if deleted != nil {
			views[i].Deleted = deleted(r.Value)
		}
	}
	return views
}

func bookDeleted(b models.Book) bool { return b.Deleted }

type listParams struct {
	Query  string
	Number int
	Size   int
}

// listParams reads ?q, ?page (zero based) and ?size.
func (s *Server) listParams(c *gin.Context) listParams {
	p := listParams{Query: strings.TrimSpace(c.Query("q")), Size: s.opts.PageSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.Query("size")); err == nil {
		p.Size = n
	}
	return p
}

func newTable[T any](heading, actionBase string, rows []grid.Row[T], cols []grid.Column[T], deleted func(T) bool, p listParams) tableView {
	return tableView{
		Heading:    heading,
		Headers:    headers(cols),
		Page:       grid.Paginate(rowViews(rows, cols, deleted), p.Number, p.Size),
		Query:      p.Query,
		PageSizes:  grid.PageSizes,
		ActionBase: actionBase,
	}
}

// backTo returns the page the form was posted from when it is path, so the
// filter and page survive the round trip; otherwise path itself.
func backTo(c *gin.Context, path string) string {
	ref, err := url.Parse(c.Request.Referer())
	if err != nil || ref.Path != path {
		return path
	}
	if ref.RawQuery == "" {
		return path
	}
	return path + "?" + ref.RawQuery
}

type formInput struct {
	Name  string
	Label string
	Value string
	Error string
}

type formView struct {
	Inputs []formInput
	Roles  []models.Role
}

type field struct{ name, label string }

var (
	bookFields = []field{
		{"isbn", "ISBN"},
		{"title", "Title"},
		{"author", "Author"},
		{"publisher", "Publisher"},
		{"publishYear", "Publication year"},
		{"availableCopies", "Available copies"},
	}
	loanFields = []field{
		{"userId", "User id"},
		{"bookId", "Book id"},
	}
	userFields = []field{
		{"username", "Username"},
		{"password", "Password"},
		{"role", "Role"},
		{"email", "E-mail"},
		{"fullUsername", "Full name"},
	}
)

// newForm fills fields from the posted values, attaching any field errors.
// Passwords are never echoed back.
func newForm(fields []field, get func(string) string, err error) formView {
	var fe validation.FieldErrors
	errors.As(err, &fe)
	view := formView{Inputs: make([]formInput, len(fields))}
	for i, f := range fields {
		in := formInput{Name: f.name, Label: f.label, Error: fe[f.name]}
		if get != nil && f.name != "password" {
			in.Value = get(f.name)
		}
		view.Inputs[i] = in
	}
	return view
}

// describe renders a validation error for a flash message.
func describe(err error) string {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		return err.Error()
	}
	return strings.TrimPrefix(fe.Error(), "validation failed: ")
}
