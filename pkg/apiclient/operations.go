package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"libadmin/pkg/models"
)

var (
	errEmptyToken  = errors.New("login succeeded without a token")
	errEmptyID     = errors.New("backend sent an empty user id")
	errMalformedID = errors.New("user id is not a scalar")
)

// Login authenticates and, on success, stores the token in the client's
// session so every later request carries it.
func (c *Client) Login(ctx context.Context, creds models.Credentials) Response[string] {
	res := call(ctx, c, "login", http.MethodPost, "/login", creds, decodeToken)
	if !res.Success {
		return res
	}
	if res.Data == "" {
		return fail[string](res.StatusCode, errEmptyToken)
	}
	c.session.SetToken(res.Data)
	c.logger.Info("logged in", "user", creds.Login)
	return res
}

// Logout forgets the credential. The backend keeps no session to end.
func (c *Client) Logout() {
	c.session.Clear()
}

func decodeToken(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return "", err
		}
		return wrapped.Token, nil
	}
	token, err := decodeText(trimmed)
	return strings.TrimSpace(token), err
}

func (c *Client) GetAllBooks(ctx context.Context) Response[[]models.Book] {
	return call(ctx, c, "getAllBooks", http.MethodGet, "/book/getAll", nil, decodeJSON[[]models.Book])
}

// AddBook creates book. The id is assigned by the backend and never sent.
func (c *Client) AddBook(ctx context.Context, book models.Book) Response[*models.Book] {
	book.ID = ""
	return call(ctx, c, "addBook", http.MethodPost, "/book/add", book, decodeJSON[*models.Book])
}

func (c *Client) UpdateBook(ctx context.Context, isbn string, update models.BookUpdate) Response[*models.Book] {
	path := "/book/update/" + url.PathEscape(isbn)
	return call(ctx, c, "updateBook", http.MethodPut, path, update, decodeJSON[*models.Book])
}

// DeleteBook deletes the book keyed by isbn. Data tells whether the backend
// removed it or only flagged it deleted.
func (c *Client) DeleteBook(ctx context.Context, isbn string) Response[Disposition] {
	path := "/book/delete/" + url.PathEscape(isbn)
	status, body, err := c.roundTrip(ctx, http.MethodDelete, path, nil)
	if err != nil {
		c.logger.Warn("backend request failed", "op", "deleteBook", "status", status, "error", err)
		return fail[Disposition](status, err)
	}
	return ok(c.disposition(status, body), status)
}

func (c *Client) disposition(status int, body []byte) Disposition {
	var explicit struct {
		Disposition Disposition `json:"disposition"`
	}
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &explicit) == nil {
		switch explicit.Disposition {
		case DispositionRemoved, DispositionSoftDeleted:
			return explicit.Disposition
		}
	}
	if status == c.softDeleteStatus {
		return DispositionSoftDeleted
	}
	return DispositionRemoved
}

func (c *Client) GetAllLoans(ctx context.Context) Response[[]models.Loan] {
	return call(ctx, c, "getAllLoans", http.MethodGet, "/loan/getAll", nil, decodeJSON[[]models.Loan])
}

func (c *Client) AddLoan(ctx context.Context, loan models.Loan) Response[*models.Loan] {
	loan.ID = ""
	return call(ctx, c, "addLoan", http.MethodPost, "/loan/add", loan, decodeJSON[*models.Loan])
}

func (c *Client) AcceptLoan(ctx context.Context, id models.ID) Response[*models.Loan] {
	path := "/loan/accept/" + url.PathEscape(id.String())
	return call(ctx, c, "acceptLoan", http.MethodPut, path, nil, decodeJSON[*models.Loan])
}

func (c *Client) ReturnLoan(ctx context.Context, id models.ID) Response[*models.Loan] {
	path := "/loan/return/" + url.PathEscape(id.String())
	return call(ctx, c, "returnLoan", http.MethodPut, path, nil, decodeJSON[*models.Loan])
}

// AddUser creates user. The password is sent once and stripped from the
// returned record.
func (c *Client) AddUser(ctx context.Context, user models.User) Response[*models.User] {
	user.ID = ""
	res := call(ctx, c, "addUser", http.MethodPost, "/user/add", user, decodeJSON[*models.User])
	if res.Data != nil {
		redacted := res.Data.Redacted()
		res.Data = &redacted
	}
	return res
}

func (c *Client) GetCurrentUserRole(ctx context.Context) Response[models.Role] {
	return call(ctx, c, "getRole", http.MethodGet, "/user/me/role", nil, func(body []byte) (models.Role, error) {
		s, err := decodeText(body)
		if err != nil {
			return "", err
		}
		return models.ParseRole(s), nil
	})
}

// GetCurrentUserID accepts the id as a JSON number, a JSON string or bare
// text. Objects, arrays and empty bodies are rejected.
func (c *Client) GetCurrentUserID(ctx context.Context) Response[models.ID] {
	return call(ctx, c, "getId", http.MethodGet, "/user/me/id", nil, decodeID)
}

func decodeID(body []byte) (models.ID, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errEmptyID
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return "", fmt.Errorf("%w: %.40s", errMalformedID, trimmed)
	}
	var id models.ID
	if err := id.UnmarshalJSON(trimmed); err != nil {
		return models.ID(strings.TrimSpace(string(trimmed))), nil
	}
	if id.IsZero() {
		return "", errEmptyID
	}
	return id, nil
}
