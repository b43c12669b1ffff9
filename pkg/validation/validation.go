// Package validation holds the local checks run before any request reaches
// the backend: book rows, the login form, and the add-user and add-loan forms.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"libadmin/pkg/models"
)

var isbnPattern = regexp.MustCompile(`^[0-9]{13}$`)

// ValidISBN reports whether s is exactly 13 decimal digits.
func ValidISBN(s string) bool {
	return isbnPattern.MatchString(s)
}

// FieldErrors maps a form field to a human readable problem.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("isbn13", func(fl validator.FieldLevel) bool {
		return ValidISBN(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	return v
}

type bookRules struct {
	ISBN            string `json:"isbn" validate:"required,isbn13"`
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	PublishYear     int    `json:"publishYear" validate:"gte=0"`
	AvailableCopies int    `json:"availableCopies" validate:"gte=0"`
}

// Book checks the fields a commit requires: ISBN, title and author present,
// ISBN exactly 13 digits, no negative counts.
func Book(b models.Book) error {
	return check(bookRules{
		ISBN:            strings.TrimSpace(b.ISBN),
		Title:           strings.TrimSpace(b.Title),
		Author:          strings.TrimSpace(b.Author),
		PublishYear:     b.PublishYear,
		AvailableCopies: b.AvailableCopies,
	})
}

type loginRules struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=7"`
}

func Login(username, password string) error {
	return check(loginRules{Username: strings.TrimSpace(username), Password: password})
}

type userRules struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Role         string `json:"role" validate:"required,role"`
	Email        string `json:"email" validate:"required,email"`
	FullUsername string `json:"fullUsername" validate:"required"`
}

func User(u models.User) error {
	return check(userRules{
		Username:     strings.TrimSpace(u.Username),
		Password:     u.Password,
		Role:         string(u.Role),
		Email:        strings.TrimSpace(u.Email),
		FullUsername: strings.TrimSpace(u.FullUsername),
	})
}

type loanRules struct {
	UserID string `json:"userId" validate:"required"`
	BookID string `json:"bookId" validate:"required"`
}

func LoanRequest(l models.Loan) error {
	return check(loanRules{
		UserID: strings.TrimSpace(l.User.ID.String()),
		BookID: strings.TrimSpace(l.Book.ID.String()),
	})
}

// ParseBookForm reads a book from form values. Publication year and copy
// count must be integers; an empty value is treated as zero.
func ParseBookForm(get func(key string) string) (models.Book, error) {
	book := models.Book{
		ISBN:      strings.TrimSpace(get("isbn")),
		Title:     strings.TrimSpace(get("title")),
		Author:    strings.TrimSpace(get("author")),
		Publisher: strings.TrimSpace(get("publisher")),
	}
	errs := FieldErrors{}
	var err error
	if book.PublishYear, err = parseInt(get("publishYear")); err != nil {
		errs["publishYear"] = "must be a whole number"
	}
	if book.AvailableCopies, err = parseInt(get("availableCopies")); err != nil {
		errs["availableCopies"] = "must be a whole number"
	}
	if len(errs) > 0 {
		return book, errs
	}
	return book, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func check(rules any) error {
	err := validate.Struct(rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "isbn13":
		return "must be exactly 13 digits"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		return "must not be negative"
	case "email":
		return "must be a valid e-mail address"
	case "role":
		return "must be Librarian or Reader"
	default:
		return "is invalid"
	}
}
