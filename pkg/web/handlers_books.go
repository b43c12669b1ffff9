package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/grid"
	"libadmin/pkg/inflight"
	"libadmin/pkg/validation"
)

// booksPage refreshes the grid from the backend and renders it. Rows being
// edited survive the refresh.
func (s *Server) booksPage(c *gin.Context) {
	sess := sessionFrom(c)
	res := sess.Client.GetAllBooks(c.Request.Context())
	if res.Success {
		sess.Books.Load(res.Data)
	} else {
		sess.Flash("error", "Failed to load books.")
	}

	p := s.listParams(c)
	cols := grid.BookColumns()
	rows := sess.Books.Filter(p.Query, cols)
	s.page(c, http.StatusOK, "books.html", "Books", newTable("Books", "/books", rows, cols, bookDeleted, p))
}

func (s *Server) addRow(c *gin.Context) {
	sess := sessionFrom(c)
	sess.Books.Add()
	// The new row is appended; land on the last page to show it.
	last := (sess.Books.Len() - 1) / s.opts.PageSize
	redirect(c, fmt.Sprintf("/books?page=%d&size=%d", last, s.opts.PageSize))
}

func (s *Server) editRow(c *gin.Context) {
	sess := sessionFrom(c)
	if err := sess.Books.Edit(c.Param("row")); err != nil {
		sess.Flash("error", rowError(err))
	}
	redirect(c, backTo(c, "/books"))
}

func (s *Server) cancelRow(c *gin.Context) {
	sess := sessionFrom(c)
	if err := sess.Books.Cancel(c.Param("row")); err != nil {
		sess.Flash("error", rowError(err))
	}
	redirect(c, backTo(c, "/books"))
}

// saveRow takes the row's inputs from the form and commits them. The ISBN of
// a stored book is its key and cannot be changed in place.
func (s *Server) saveRow(c *gin.Context) {
	sess := sessionFrom(c)
	id := c.Param("row")
	defer func() { redirect(c, backTo(c, "/books")) }()

	row, ok := sess.Books.Row(id)
	if !ok {
		sess.Flash("error", rowError(grid.ErrNotFound))
		return
	}
	book, err := validation.ParseBookForm(c.PostForm)
	if !row.IsNew {
		book.ISBN = row.Value.ISBN
	}
	// Numbers that did not parse keep the row's current value.
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		if fe.Has("publishYear") {
			book.PublishYear = row.Value.PublishYear
		}
		if fe.Has("availableCopies") {
			book.AvailableCopies = row.Value.AvailableCopies
		}
	}
	book.ID = row.Value.ID
	book.Deleted = row.Value.Deleted
	book.IsNew = row.IsNew
	if setErr := sess.Books.Set(id, book); setErr != nil {
		sess.Flash("error", rowError(setErr))
		return
	}
	if err != nil {
		sess.Flash("error", "Book not saved: "+describe(err))
		return
	}

	err = sess.Books.Save(c.Request.Context(), id)
	switch {
	case err == nil:
		sess.Flash("success", "Book successfully saved!")
	case errors.Is(err, grid.ErrValidation):
		sess.Flash("error", "Book not saved: "+describe(err))
	case errors.Is(err, grid.ErrCommitFailed):
		sess.Flash("error", "Failed to save book. Your changes are kept; save again or cancel.")
	default:
		sess.Flash("error", rowError(err))
	}
}

func (s *Server) deleteRow(c *gin.Context) {
	sess := sessionFrom(c)
	disposition, err := sess.Books.Delete(c.Request.Context(), c.Param("row"))
	switch {
	case err == nil && disposition == apiclient.DispositionSoftDeleted:
		sess.Flash("info", "The book is referenced by loans, so it was marked deleted.")
	case err == nil:
		sess.Flash("success", "Book deleted.")
	case errors.Is(err, grid.ErrDeleteFailed):
		sess.Flash("error", "Failed to delete book.")
	default:
		sess.Flash("error", rowError(err))
	}
	redirect(c, backTo(c, "/books"))
}

func rowError(err error) string {
	switch {
	case errors.Is(err, grid.ErrNotFound):
		return "That row no longer exists."
	case errors.Is(err, grid.ErrBusy):
		return "That row is still waiting for the server."
	case errors.Is(err, grid.ErrEditing):
		return "Save or cancel your edits first."
	case errors.Is(err, grid.ErrNotEditing):
		return "That row is not being edited."
	default:
		return err.Error()
	}
}

func (s *Server) newBookPage(c *gin.Context) {
	s.page(c, http.StatusOK, "book_new.html", "Add a book", newForm(bookFields, nil, nil))
}

func (s *Server) createBook(c *gin.Context) {
	sess := sessionFrom(c)
	book, err := validation.ParseBookForm(c.PostForm)
	if err == nil {
		err = validation.Book(book)
	}
	if err != nil {
		s.page(c, http.StatusBadRequest, "book_new.html", "Add a book", newForm(bookFields, c.PostForm, err))
		return
	}

	err = s.guard.Do(sess.ID+":book:add", func() error {
		res := sess.Client.AddBook(c.Request.Context(), book)
		if !res.Success {
			return fmt.Errorf("add book: status %d: %w", res.StatusCode, res.Err)
		}
		return nil
	})
	if err != nil {
		msg := "Failed to add book."
		if errors.Is(err, inflight.ErrInFlight) {
			msg = "That book is already being saved."
		}
		sess.Flash("error", msg)
		s.page(c, http.StatusBadGateway, "book_new.html", "Add a book", newForm(bookFields, c.PostForm, nil))
		return
	}
	sess.Flash("success", "Book successfully saved!")
	redirect(c, "/books")
}
