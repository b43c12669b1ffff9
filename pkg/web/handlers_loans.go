package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/grid"
	"libadmin/pkg/inflight"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

func (s *Server) loansPage(c *gin.Context) {
	sess := sessionFrom(c)
	var loans []models.Loan
	if res := sess.Client.GetAllLoans(c.Request.Context()); res.Success {
		loans = res.Data
	} else {
		sess.Flash("error", "Failed to load loans.")
	}

	p := s.listParams(c)
	cols := grid.LoanColumns(true)
	rows := grid.FilterRows(grid.ViewRows(loans, grid.LoanKey), cols, p.Query)
	view := newTable("Loans", "/loans", rows, cols, nil, p)
	view.CanAdd = true
	s.page(c, http.StatusOK, "loans.html", "Loans", view)
}

func (s *Server) myLoans(c *gin.Context) {
	sess := sessionFrom(c)
	var loans []models.Loan
	if res := sess.Client.GetAllLoans(c.Request.Context()); res.Success {
		loans = models.LoansForUser(res.Data, sess.UserID)
	} else {
		sess.Flash("error", "Failed to load your loans.")
	}

	p := s.listParams(c)
	cols := grid.LoanColumns(false)
	rows := grid.FilterRows(grid.ViewRows(loans, grid.LoanKey), cols, p.Query)
	s.page(c, http.StatusOK, "loans.html", "My loans", newTable("My loans", "", rows, cols, nil, p))
}

// loanAction runs a loan transition. One transition per loan may be in
// flight at a time, whoever triggered it.
func (s *Server) loanAction(c *gin.Context, verb string, call func(*apiclient.Client, models.ID) apiclient.Response[*models.Loan]) {
	sess := sessionFrom(c)
	id := models.ID(c.Param("id"))

	err := s.guard.Do("loan:"+id.String(), func() error {
		res := call(sess.Client, id)
		if !res.Success {
			return fmt.Errorf("%s loan %s: status %d: %w", verb, id, res.StatusCode, res.Err)
		}
		return nil
	})
	switch {
	case err == nil:
		sess.Flash("success", fmt.Sprintf("Loan %sed.", verb))
	case errors.Is(err, inflight.ErrInFlight):
		sess.Flash("info", "That loan is already being updated.")
	default:
		s.logger.Warn("loan action failed", "action", verb, "loan", id, "error", err)
		sess.Flash("error", fmt.Sprintf("Failed to %s loan.", verb))
	}
	redirect(c, backTo(c, "/loans"))
}

func (s *Server) acceptLoan(c *gin.Context) {
	s.loanAction(c, "accept", func(cl *apiclient.Client, id models.ID) apiclient.Response[*models.Loan] {
		return cl.AcceptLoan(c.Request.Context(), id)
	})
}

func (s *Server) returnLoan(c *gin.Context) {
	s.loanAction(c, "return", func(cl *apiclient.Client, id models.ID) apiclient.Response[*models.Loan] {
		return cl.ReturnLoan(c.Request.Context(), id)
	})
}

func (s *Server) newLoanPage(c *gin.Context) {
	s.page(c, http.StatusOK, "loan_new.html", "Record a loan", newForm(loanFields, nil, nil))
}

func (s *Server) createLoan(c *gin.Context) {
	sess := sessionFrom(c)
	loan := models.Loan{
		User: models.UserRef{ID: models.ID(strings.TrimSpace(c.PostForm("userId")))},
		Book: models.BookRef{ID: models.ID(strings.TrimSpace(c.PostForm("bookId")))},
	}
	if err := validation.LoanRequest(loan); err != nil {
		s.page(c, http.StatusBadRequest, "loan_new.html", "Record a loan", newForm(loanFields, c.PostForm, err))
		return
	}

	if res := sess.Client.AddLoan(c.Request.Context(), loan); !res.Success {
		sess.Flash("error", "Failed to add loan.")
		s.page(c, http.StatusBadGateway, "loan_new.html", "Record a loan", newForm(loanFields, c.PostForm, nil))
		return
	}
	sess.Flash("success", "Loan successfully saved!")
	redirect(c, "/loans")
}

// catalogPage lists the books a reader can borrow, keyed by book id.
func (s *Server) catalogPage(c *gin.Context) {
	sess := sessionFrom(c)
	var books []models.Book
	if res := sess.Client.GetAllBooks(c.Request.Context()); res.Success {
		books = models.VisibleBooks(res.Data)
	} else {
		sess.Flash("error", "Failed to load books.")
	}

	p := s.listParams(c)
	cols := grid.CatalogColumns()
	rows := grid.FilterRows(grid.ViewRows(books, func(b models.Book) string { return b.ID.String() }), cols, p.Query)
	s.page(c, http.StatusOK, "catalog.html", "Catalog", newTable("Catalog", "/catalog", rows, cols, nil, p))
}

func (s *Server) borrow(c *gin.Context) {
	sess := sessionFrom(c)
	bookID := models.ID(c.Param("id"))

	var status int
	err := s.guard.Do(sess.ID+":borrow:"+bookID.String(), func() error {
		res := sess.Client.AddLoan(c.Request.Context(), models.NewLoanRequest(sess.UserID, models.Book{ID: bookID}))
		status = res.StatusCode
		if !res.Success {
			return fmt.Errorf("borrow %s: status %d: %w", bookID, res.StatusCode, res.Err)
		}
		return nil
	})
	switch {
	case err == nil:
		sess.Flash("success", "Loan requested. A librarian will confirm it.")
	case errors.Is(err, inflight.ErrInFlight):
		sess.Flash("info", "Your request for that book is already on its way.")
	case status == http.StatusConflict:
		sess.Flash("error", "That book is not available right now.")
	default:
		sess.Flash("error", "Failed to request the loan.")
	}
	redirect(c, backTo(c, "/catalog"))
}
