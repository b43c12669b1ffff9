package grid

import (
	"context"
	"strconv"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/logging"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

// BookClient is the part of the API client the books grid needs.
type BookClient interface {
	AddBook(ctx context.Context, book models.Book) apiclient.Response[*models.Book]
	UpdateBook(ctx context.Context, isbn string, update models.BookUpdate) apiclient.Response[*models.Book]
	DeleteBook(ctx context.Context, isbn string) apiclient.Response[apiclient.Disposition]
}

// BooksAdapter keys book rows by ISBN, which is also the path parameter of
// the update and delete endpoints.
type BooksAdapter struct {
	Client BookClient
}

func NewBooksGrid(client BookClient, logger logging.Logger) *Grid[models.Book] {
	return New[models.Book](BooksAdapter{Client: client}, logger)
}

func (BooksAdapter) Key(b models.Book) string { return b.ISBN }

func (BooksAdapter) Blank() models.Book { return models.Book{IsNew: true} }

func (BooksAdapter) Validate(b models.Book) error { return validation.Book(b) }

func (a BooksAdapter) Create(ctx context.Context, b models.Book) apiclient.Response[*models.Book] {
	return a.Client.AddBook(ctx, b)
}

func (a BooksAdapter) Update(ctx context.Context, isbn string, b models.Book) apiclient.Response[*models.Book] {
	return a.Client.UpdateBook(ctx, isbn, b.MutableFields())
}

func (a BooksAdapter) Delete(ctx context.Context, isbn string) apiclient.Response[apiclient.Disposition] {
	return a.Client.DeleteBook(ctx, isbn)
}

func (BooksAdapter) MarkDeleted(b models.Book) models.Book {
	b.Deleted = true
	return b
}

func bookFieldColumns() []Column[models.Book] {
	return []Column[models.Book]{
		Plain("isbn", "ISBN", func(b models.Book) string { return b.ISBN }),
		Plain("title", "Title", func(b models.Book) string { return b.Title }),
		Plain("author", "Author", func(b models.Book) string { return b.Author }),
		Plain("publisher", "Publisher", func(b models.Book) string { return b.Publisher }),
		Plain("publishYear", "Publication year", func(b models.Book) string { return strconv.Itoa(b.PublishYear) }),
		Plain("availableCopies", "Available copies", func(b models.Book) string { return strconv.Itoa(b.AvailableCopies) }),
	}
}

// BookColumns is the librarian's editable books table.
func BookColumns() []Column[models.Book] {
	return append(bookFieldColumns(),
		Computed("status", "Status", func(b models.Book) string {
			if b.Deleted {
				return "Unavailable"
			}
			return "Available"
		}),
		Actions("actions", "Actions", func(r Row[models.Book]) []Action {
			switch {
			case r.Busy:
				return nil
			case r.Editing():
				return []Action{{Name: "save", Label: "Save"}, {Name: "cancel", Label: "Cancel"}}
			case r.Value.Deleted:
				return []Action{{Name: "edit", Label: "Edit"}}
			default:
				return []Action{{Name: "edit", Label: "Edit"}, {Name: "delete", Label: "Delete"}}
			}
		}),
	)
}

// CatalogColumns is the reader's read-only books table.
func CatalogColumns() []Column[models.Book] {
	return append(bookFieldColumns(),
		Actions("actions", "Actions", func(r Row[models.Book]) []Action {
			return []Action{{Name: "borrow", Label: "Borrow"}}
		}),
	)
}

// LoanColumns is the loans table; withActions adds Accept for pending loans
// and Return for active ones.
func LoanColumns(withActions bool) []Column[models.Loan] {
	cols := []Column[models.Loan]{
		Computed("loanDate", "Rental start date", func(l models.Loan) string { return models.FormatDate(l.LoanDate) }),
		Computed("loanEnd", "Rental end date", func(l models.Loan) string { return models.FormatDate(l.LoanEnd) }),
		Computed("returnDate", "Date of return", func(l models.Loan) string { return models.FormatDate(l.ReturnDate) }),
		Computed("user", "User", func(l models.Loan) string {
			if l.User.FullUsername != "" {
				return l.User.FullUsername
			}
			return l.User.ID.String()
		}),
		Computed("book", "Book title", func(l models.Loan) string {
			if l.Book.Title != "" {
				return l.Book.Title
			}
			return l.Book.ID.String()
		}),
		Computed("status", "Status", func(l models.Loan) string { return string(l.Status()) }),
	}
	if !withActions {
		return cols
	}
	return append(cols, Actions("actions", "Actions", func(r Row[models.Loan]) []Action {
		if r.Value.ID.IsZero() {
			return nil
		}
		switch r.Value.Status() {
		case models.LoanPending:
			return []Action{{Name: "accept", Label: "Accept"}}
		case models.LoanActive:
			return []Action{{Name: "return", Label: "Return"}}
		default:
			return nil
		}
	}))
}

func LoanKey(l models.Loan) string { return l.ID.String() }

func BookKey(b models.Book) string { return b.ISBN }
