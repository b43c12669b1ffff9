package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libadmin/pkg/circuitbreaker"
	"libadmin/pkg/models"
)

const testToken = "opaque-token-123"

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Login != "librarian" || creds.Password != "password1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, testToken)
	})
	mux.HandleFunc("GET /book/getAll", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"isbn":"9783161484100","title":"Crime and Punishment","author":"Fyodor Dostoevsky","publishYear":1866,"availableCopies":500,"deleted":false}]`)
	}))
	mux.HandleFunc("POST /book/add", authed(func(w http.ResponseWriter, r *http.Request) {
		var b models.Book
		_ = json.NewDecoder(r.Body).Decode(&b)
		b.ID = "77"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(b)
	}))
	mux.HandleFunc("PUT /book/update/{isbn}", authed(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var update models.BookUpdate
		_ = json.Unmarshal(raw, &update)
		b := models.Book{ID: "1", ISBN: r.PathValue("isbn")}
		update.Apply(&b)
		_ = json.NewEncoder(w).Encode(b)
	}))
	mux.HandleFunc("DELETE /book/delete/{isbn}", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("isbn") {
		case "9780451524935":
			w.WriteHeader(http.StatusAccepted)
		case "9780140449242":
			_, _ = io.WriteString(w, `{"disposition":"soft-deleted"}`)
		case "0000000000000":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	mux.HandleFunc("GET /loan/getAll", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":4,"loanDate":[2024,3,5],"loanEnd":[2024,3,19],"returnDate":null,"user":{"id":2,"fullUsername":"Alice Smith"},"book":{"id":1,"title":"1984"},"accepted":false}]`)
	}))
	mux.HandleFunc("PUT /loan/accept/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":`+r.PathValue("id")+`,"accepted":true,"user":{"id":2},"book":{"id":1}}`)
	}))
	mux.HandleFunc("PUT /loan/return/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	mux.HandleFunc("POST /user/add", authed(func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		_ = json.NewDecoder(r.Body).Decode(&u)
		u.ID = "9"
		_ = json.NewEncoder(w).Encode(u)
	}))
	mux.HandleFunc("GET /user/me/role", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"ROLE_LIBRARIAN"`)
	}))
	mux.HandleFunc("GET /user/me/id", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `2`)
	}))
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c := NewClient(srv.URL, opts...)
	res := c.Login(context.Background(), models.Credentials{Login: "librarian", Password: "password1"})
	require.True(t, res.Success)
	return c
}

func assertFailureShape[T any](t *testing.T, res Response[T], status int) {
	t.Helper()
	assert.False(t, res.Success)
	assert.Equal(t, status, res.StatusCode)
	assert.Error(t, res.Err)
	var zero T
	assert.Equal(t, zero, res.Data)
}

func TestLoginAttachesBearerToken(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	before := c.GetAllBooks(ctx)
	assertFailureShape(t, before, http.StatusUnauthorized)

	res := c.Login(ctx, models.Credentials{Login: "librarian", Password: "password1"})
	require.True(t, res.Success)
	assert.Equal(t, testToken, res.Data)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, c.Session().Authenticated())

	books := c.GetAllBooks(ctx)
	require.True(t, books.Success)
	require.Len(t, books.Data, 1)
	assert.Equal(t, models.ID("1"), books.Data[0].ID)
	assert.Equal(t, "9783161484100", books.Data[0].ISBN)
}

func TestLoginFailure(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL)

	res := c.Login(context.Background(), models.Credentials{Login: "librarian", Password: "wrong"})

	assertFailureShape(t, res, http.StatusUnauthorized)
	assert.False(t, c.Session().Authenticated())
}

func TestSessionsAreNotShared(t *testing.T) {
	srv := newBackend(t)
	first := loggedIn(t, srv)
	second := NewClient(srv.URL)

	assert.True(t, first.GetAllBooks(context.Background()).Success)
	assertFailureShape(t, second.GetAllBooks(context.Background()), http.StatusUnauthorized)

	first.Logout()
	assertFailureShape(t, first.GetAllBooks(context.Background()), http.StatusUnauthorized)
}

func TestTransportFailureHasStatusZero(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv)
	srv.Close()

	assertFailureShape(t, c.GetAllLoans(context.Background()), 0)
	assertFailureShape(t, c.DeleteBook(context.Background(), "9783161484100"), 0)
}

func TestUndecodableBodyIsFailure(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL)

	res := call(context.Background(), c, "broken", http.MethodGet, "/broken", nil, decodeJSON[[]models.Book])

	assertFailureShape(t, res, http.StatusOK)
}

func TestBookOperations(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv)
	ctx := context.Background()

	created := c.AddBook(ctx, models.Book{ID: "tmp", ISBN: "9780307743657", Title: "The Help", Author: "Kathryn Stockett"})
	require.True(t, created.Success)
	assert.Equal(t, http.StatusCreated, created.StatusCode)
	assert.Equal(t, models.ID("77"), created.Data.ID)

	book := models.Book{Title: "New title", Author: "Someone", PublishYear: 2001}
	updated := c.UpdateBook(ctx, "9783161484100", book.MutableFields())
	require.True(t, updated.Success)
	assert.Equal(t, "New title", updated.Data.Title)
	assert.Equal(t, "9783161484100", updated.Data.ISBN)
}

func TestDeleteBookDisposition(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv)
	ctx := context.Background()

	tests := []struct {
		name        string
		isbn        string
		status      int
		disposition Disposition
	}{
		{name: "no content removes", isbn: "9783161484100", status: http.StatusNoContent, disposition: DispositionRemoved},
		{name: "soft delete status", isbn: "9780451524935", status: http.StatusAccepted, disposition: DispositionSoftDeleted},
		{name: "explicit disposition wins", isbn: "9780140449242", status: http.StatusOK, disposition: DispositionSoftDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.DeleteBook(ctx, tt.isbn)
			require.True(t, res.Success)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.disposition, res.Data)
		})
	}

	assertFailureShape(t, c.DeleteBook(ctx, "0000000000000"), http.StatusNotFound)
}

func TestLoanOperations(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv)
	ctx := context.Background()

	loans := c.GetAllLoans(ctx)
	require.True(t, loans.Success)
	require.Len(t, loans.Data, 1)
	assert.Equal(t, "05/03/2024", models.FormatDate(loans.Data[0].LoanDate))
	assert.Equal(t, models.LoanPending, loans.Data[0].Status())

	accepted := c.AcceptLoan(ctx, "4")
	require.True(t, accepted.Success)
	assert.True(t, accepted.Data.Accepted)

	assertFailureShape(t, c.ReturnLoan(ctx, "4"), http.StatusInternalServerError)
}

func TestUserOperations(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv)
	ctx := context.Background()

	added := c.AddUser(ctx, models.User{Username: "jdoe", Password: "password1", Role: models.RoleReader})
	require.True(t, added.Success)
	assert.Equal(t, models.ID("9"), added.Data.ID)
	assert.Empty(t, added.Data.Password)

	role := c.GetCurrentUserRole(ctx)
	require.True(t, role.Success)
	assert.Equal(t, models.RoleLibrarian, role.Data)

	id := c.GetCurrentUserID(ctx)
	require.True(t, id.Success)
	assert.Equal(t, models.ID("2"), id.Data)
}

func TestOpenBreakerFailsFast(t *testing.T) {
	srv := newBackend(t)
	cb := circuitbreaker.NewCircuitBreaker(0, time.Minute)
	c := loggedIn(t, srv, WithBreaker(cb))
	ctx := context.Background()

	assertFailureShape(t, c.ReturnLoan(ctx, "4"), http.StatusInternalServerError)
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	res := c.GetAllBooks(ctx)
	assertFailureShape(t, res, 0)
	assert.ErrorIs(t, res.Err, circuitbreaker.ErrOpen)
}

func TestSessionClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "2",
		"role": "ROLE_READER",
		"exp":  exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	s := NewSession()
	s.SetToken(signed)

	claims, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "2", claims.Subject)
	assert.Equal(t, "ROLE_READER", claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(exp.Add(time.Second)))

	s.SetToken(testToken)
	_, ok = s.Claims()
	assert.False(t, ok)
	assert.False(t, s.Expired(time.Now()))
}

func TestDecodeID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.ID
		wantErr bool
	}{
		{name: "number", body: "2", want: "2"},
		{name: "json string", body: `"u-17"`, want: "u-17"},
		{name: "bare text", body: " 42\n", want: "42"},
		{name: "object", body: `{"id":2}`, wantErr: true},
		{name: "array", body: `[2]`, wantErr: true},
		{name: "empty", body: "  ", wantErr: true},
		{name: "null", body: "null", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeID([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrentUserIDRejectsObjectBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":2}`)
	}))
	t.Cleanup(srv.Close)

	res := NewClient(srv.URL).GetCurrentUserID(context.Background())

	assertFailureShape(t, res, http.StatusOK)
}
