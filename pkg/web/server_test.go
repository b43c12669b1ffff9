package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libadmin/pkg/models"
)

type fakeUser struct {
	id       string
	password string
	role     models.Role
}

type fakeBackend struct {
	mu       sync.Mutex
	users    map[string]fakeUser
	tokens   map[string]string
	books    []models.Book
	loans    []models.Loan
	soft     map[string]bool
	addCalls int
	accepted []string
	failUser bool
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{
		users: map[string]fakeUser{
			"librarian": {id: "1", password: "password1", role: models.RoleLibrarian},
			"reader":    {id: "2", password: "password1", role: models.RoleReader},
		},
		tokens: map[string]string{},
		books: []models.Book{
			{ID: "1", ISBN: "9783161484100", Title: "Crime and Punishment", Author: "Fyodor Dostoevsky", AvailableCopies: 5},
			{ID: "2", ISBN: "9780451524935", Title: "1984", Author: "George Orwell", AvailableCopies: 3},
			{ID: "3", ISBN: "9780141439518", Title: "Pride and Prejudice", Author: "Jane Austen", Deleted: true},
		},
		loans: []models.Loan{
			{ID: "10", User: models.UserRef{ID: "2", FullUsername: "Alice Smith"}, Book: models.BookRef{ID: "1", Title: "Crime and Punishment"}},
			{ID: "11", Accepted: true, LoanDate: models.DateOf(2024, 3, 5), User: models.UserRef{ID: "1", FullUsername: "Head Librarian"}, Book: models.BookRef{ID: "2", Title: "1984"}},
		},
		soft: map[string]bool{"9783161484100": true},
	}

	mux := http.NewServeMux()
	authed := func(h func(w http.ResponseWriter, r *http.Request, user fakeUser)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fb.mu.Lock()
			name, ok := fb.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
			user := fb.users[name]
			fb.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r, user)
		}
	}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		fb.mu.Lock()
		defer fb.mu.Unlock()
		u, ok := fb.users[creds.Login]
		if !ok || u.password != creds.Password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := "token-" + creds.Login
		fb.tokens[token] = creds.Login
		writeJSON(w, http.StatusOK, token)
	})
	mux.HandleFunc("GET /user/me/role", authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		writeJSON(w, http.StatusOK, u.role)
	}))
	mux.HandleFunc("GET /user/me/id", authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		_, _ = io.WriteString(w, u.id)
	}))
	mux.HandleFunc("GET /book/getAll", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		writeJSON(w, http.StatusOK, fb.books)
	}))
	mux.HandleFunc("POST /book/add", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		var b models.Book
		_ = json.NewDecoder(r.Body).Decode(&b)
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.addCalls++
		b.ID = "99"
		fb.books = append(fb.books, b)
		writeJSON(w, http.StatusCreated, b)
	}))
	mux.HandleFunc("PUT /book/update/{isbn}", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		var u models.BookUpdate
		_ = json.NewDecoder(r.Body).Decode(&u)
		fb.mu.Lock()
		defer fb.mu.Unlock()
		for i := range fb.books {
			if fb.books[i].ISBN == r.PathValue("isbn") {
				u.Apply(&fb.books[i])
				writeJSON(w, http.StatusOK, fb.books[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("DELETE /book/delete/{isbn}", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		isbn := r.PathValue("isbn")
		fb.mu.Lock()
		defer fb.mu.Unlock()
		for i := range fb.books {
			if fb.books[i].ISBN != isbn {
				continue
			}
			if fb.soft[isbn] {
				fb.books[i].Deleted = true
				writeJSON(w, http.StatusAccepted, map[string]string{"disposition": "soft-deleted"})
				return
			}
			fb.books = append(fb.books[:i], fb.books[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("GET /loan/getAll", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		writeJSON(w, http.StatusOK, fb.loans)
	}))
	mux.HandleFunc("POST /loan/add", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		var l models.Loan
		_ = json.NewDecoder(r.Body).Decode(&l)
		if l.Book.ID == "2" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		fb.mu.Lock()
		defer fb.mu.Unlock()
		l.ID = "12"
		fb.loans = append(fb.loans, l)
		writeJSON(w, http.StatusCreated, l)
	}))
	mux.HandleFunc("PUT /loan/accept/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.accepted = append(fb.accepted, r.PathValue("id"))
		writeJSON(w, http.StatusOK, models.Loan{ID: models.ID(r.PathValue("id")), Accepted: true})
	}))
	mux.HandleFunc("PUT /loan/return/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	mux.HandleFunc("POST /user/add", authed(func(w http.ResponseWriter, r *http.Request, _ fakeUser) {
		var u models.User
		_ = json.NewDecoder(r.Body).Decode(&u)
		fb.mu.Lock()
		defer fb.mu.Unlock()
		if fb.failUser {
			w.WriteHeader(http.StatusConflict)
			return
		}
		u.ID = "3"
		writeJSON(w, http.StatusCreated, u)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

type page struct {
	status   int
	body     string
	location string
}

func newBrowser(t *testing.T, s *Server) *browser {
	t.Helper()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	res, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)
	return page{status: res.StatusCode, body: string(body), location: res.Header.Get("Location")}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(user string) {
	b.t.Helper()
	p := b.post("/login", url.Values{"username": {user}, "password": {"password1"}})
	require.Equal(b.t, http.StatusSeeOther, p.status, p.body)
	require.Equal(b.t, "/home", p.location)
}

func newTestServer(t *testing.T, backendURL string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(Options{
		BackendURL: backendURL,
		Timeout:    2 * time.Second,
		Notice:     "**Closed** on Sunday <script>alert(1)</script>",
	})
	require.NoError(t, err)
	return s
}

func TestIndexRedirectsToLogin(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))

	p := b.get("/")
	assert.Equal(t, http.StatusFound, p.status)
	assert.Equal(t, "/login", p.location)

	p = b.get("/home")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	p = b.get("/manage/health")
	assert.Equal(t, http.StatusOK, p.status)
}

func TestHealthReportsSessionsAndPendingActions(t *testing.T) {
	_, backend := newFakeBackend(t)
	s := newTestServer(t, backend.URL)
	b := newBrowser(t, s)

	p := b.get("/manage/health")
	assert.JSONEq(t, `{"status":"UP","sessions":0,"inflight":[]}`, p.body)

	b.login("librarian")
	release, ok := s.guard.Begin("loan:10")
	require.True(t, ok)
	defer release()

	p = b.get("/manage/health")
	assert.JSONEq(t, `{"status":"UP","sessions":1,"inflight":["loan:10"]}`, p.body)
}

func TestLoginValidation(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))

	p := b.post("/login", url.Values{"username": {""}, "password": {"short"}})
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "is required")
	assert.Contains(t, p.body, "must be at least 7 characters")

	p = b.post("/login", url.Values{"username": {"librarian"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Contains(t, p.body, "Invalid username or password.")
}

func TestLoginUnavailableBackend(t *testing.T) {
	b := newBrowser(t, newTestServer(t, "http://127.0.0.1:1"))
	p := b.post("/login", url.Values{"username": {"librarian"}, "password": {"password1"}})
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Contains(t, p.body, "unavailable")
}

func TestHomeShowsRoleMenuAndNotice(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")

	p := b.get("/home")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Welcome, librarian")
	assert.Contains(t, p.body, "Signed in as Librarian")
	assert.Contains(t, p.body, "<strong>Closed</strong>")
	assert.NotContains(t, p.body, "<script>")
	assert.Contains(t, p.body, `href="/books"`)
}

func TestReaderCannotOpenLibrarianPages(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("reader")

	p := b.get("/books")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/home", p.location)

	p = b.get("/home")
	assert.Contains(t, p.body, "You are not allowed to open that page.")
}

func TestLogoutEndsSession(t *testing.T) {
	_, backend := newFakeBackend(t)
	s := newTestServer(t, backend.URL)
	b := newBrowser(t, s)
	b.login("librarian")
	assert.Equal(t, 1, s.Sessions().Len())

	p := b.post("/logout", nil)
	assert.Equal(t, "/login", p.location)
	assert.Equal(t, 0, s.Sessions().Len())

	p = b.get("/home")
	assert.Equal(t, "/login", p.location)
}

func TestIdleSessionExpires(t *testing.T) {
	_, backend := newFakeBackend(t)
	s := newTestServer(t, backend.URL)
	b := newBrowser(t, s)
	b.login("librarian")

	now := time.Now()
	s.Sessions().now = func() time.Time { return now.Add(time.Hour) }

	p := b.get("/home")
	assert.Equal(t, "/login", p.location)
	assert.Equal(t, 0, s.Sessions().Len())
}

func TestBooksGridFilterAndPaging(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")

	p := b.get("/books")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Crime and Punishment")
	assert.Contains(t, p.body, "Pride and Prejudice")
	assert.Contains(t, p.body, "1-3 of 3")

	p = b.get("/books?q=orwell")
	assert.Contains(t, p.body, "1984")
	assert.NotContains(t, p.body, "Crime and Punishment")
}

func TestBooksGridAddRowAndSave(t *testing.T) {
	fb, backend := newFakeBackend(t)
	s := newTestServer(t, backend.URL)
	b := newBrowser(t, s)
	b.login("librarian")
	b.get("/books")

	p := b.post("/books/add", nil)
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/books?page=0&size=10", p.location)

	var sess *UserSession
	for _, v := range s.sessions.sessions {
		sess = v
	}
	require.NotNil(t, sess)
	rows := sess.Books.Rows()
	newRow := rows[len(rows)-1]
	require.True(t, newRow.IsNew)

	p = b.post("/books/"+newRow.ID+"/save", url.Values{"isbn": {"978316148410"}, "title": {"Short ISBN"}, "author": {"Anon"}})
	require.Equal(t, http.StatusSeeOther, p.status)
	p = b.get("/books")
	assert.Contains(t, p.body, "must be exactly 13 digits")
	assert.Equal(t, 0, fb.addCalls)

	form := url.Values{
		"isbn": {"9780307743657"}, "title": {"The Help"}, "author": {"Kathryn Stockett"},
		"publisher": {"Putnam"}, "publishYear": {"2009"}, "availableCopies": {"2"},
	}
	p = b.post("/books/"+newRow.ID+"/save", form)
	require.Equal(t, http.StatusSeeOther, p.status)
	p = b.get("/books")
	assert.Contains(t, p.body, "Book successfully saved!")
	assert.Contains(t, p.body, "The Help")
	assert.Equal(t, 1, fb.addCalls)

	saved, ok := sess.Books.Row("9780307743657")
	require.True(t, ok)
	assert.Equal(t, models.ID("99"), saved.Value.ID)
}

func TestBooksGridEditCancel(t *testing.T) {
	fb, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")
	b.get("/books")

	b.post("/books/9780451524935/edit", nil)
	p := b.get("/books")
	assert.Contains(t, p.body, `form="row-9780451524935"`)

	b.post("/books/9780451524935/cancel", nil)
	p = b.get("/books")
	assert.NotContains(t, p.body, `form="row-9780451524935"`)

	b.post("/books/9780451524935/edit", nil)
	b.post("/books/9780451524935/save", url.Values{"title": {"Nineteen Eighty-Four"}, "author": {"George Orwell"}, "availableCopies": {"3"}})
	p = b.get("/books")
	assert.Contains(t, p.body, "Nineteen Eighty-Four")
	fb.mu.Lock()
	assert.Equal(t, "Nineteen Eighty-Four", fb.books[1].Title)
	fb.mu.Unlock()
}

func TestBooksGridUnparsableNumberKeepsRowValue(t *testing.T) {
	fb, backend := newFakeBackend(t)
	s := newTestServer(t, backend.URL)
	b := newBrowser(t, s)
	b.login("librarian")
	b.get("/books")

	b.post("/books/9780451524935/edit", nil)
	p := b.post("/books/9780451524935/save", url.Values{
		"title": {"Nineteen Eighty-Four"}, "author": {"George Orwell"},
		"publishYear": {"19x9"}, "availableCopies": {"lots"},
	})
	require.Equal(t, http.StatusSeeOther, p.status)

	p = b.get("/books")
	assert.Contains(t, p.body, "must be a whole number")

	var sess *UserSession
	for _, v := range s.sessions.sessions {
		sess = v
	}
	require.NotNil(t, sess)
	row, ok := sess.Books.Row("9780451524935")
	require.True(t, ok)
	assert.True(t, row.Editing())
	assert.Equal(t, "Nineteen Eighty-Four", row.Value.Title)
	assert.Equal(t, 3, row.Value.AvailableCopies)

	fb.mu.Lock()
	assert.Equal(t, "1984", fb.books[1].Title)
	fb.mu.Unlock()
}

func TestBooksGridDelete(t *testing.T) {
	fb, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")
	b.get("/books")

	b.post("/books/9783161484100/delete", nil)
	p := b.get("/books")
	assert.Contains(t, p.body, "marked deleted")
	assert.Contains(t, p.body, "Crime and Punishment")

	b.post("/books/9780451524935/delete", nil)
	p = b.get("/books")
	assert.Contains(t, p.body, "Book deleted.")
	assert.NotContains(t, p.body, "1984")
	fb.mu.Lock()
	assert.Len(t, fb.books, 2)
	fb.mu.Unlock()
}

func TestCatalogAndBorrow(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("reader")

	p := b.get("/catalog")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Crime and Punishment")
	assert.NotContains(t, p.body, "Pride and Prejudice")
	assert.Contains(t, p.body, `action="/catalog/1/borrow"`)

	b.post("/catalog/1/borrow", nil)
	p = b.get("/catalog")
	assert.Contains(t, p.body, "Loan requested.")

	b.post("/catalog/2/borrow", nil)
	p = b.get("/catalog")
	assert.Contains(t, p.body, "not available right now")
}

func TestLoansPages(t *testing.T) {
	fb, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")

	p := b.get("/loans")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Alice Smith")
	assert.Contains(t, p.body, "05/03/2024")
	assert.Contains(t, p.body, `action="/loans/10/accept"`)
	assert.Contains(t, p.body, `action="/loans/11/return"`)

	b.post("/loans/10/accept", nil)
	p = b.get("/loans")
	assert.Contains(t, p.body, "Loan accepted.")
	assert.Equal(t, []string{"10"}, fb.accepted)

	b.post("/loans/11/return", nil)
	p = b.get("/loans")
	assert.Contains(t, p.body, "Failed to return loan.")

	p = b.get("/loans/mine")
	assert.Contains(t, p.body, "Head Librarian")
	assert.NotContains(t, p.body, "Alice Smith")
}

func TestCreateUser(t *testing.T) {
	fb, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")

	p := b.post("/users/new", url.Values{"username": {"bob"}, "password": {"secret-pw"}, "role": {"READER"}, "email": {"nope"}, "fullUsername": {"Bob"}})
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "must be a valid e-mail address")
	assert.NotContains(t, p.body, "secret-pw")

	form := url.Values{"username": {"bob"}, "password": {"secret-pw"}, "role": {"ROLE_READER"}, "email": {"bob@example.com"}, "fullUsername": {"Bob Jones"}}
	p = b.post("/users/new", form)
	assert.Equal(t, "/users/new", p.location)
	p = b.get("/users/new")
	assert.Contains(t, p.body, "User successfully saved!")

	fb.mu.Lock()
	fb.failUser = true
	fb.mu.Unlock()
	p = b.post("/users/new", form)
	assert.Equal(t, http.StatusBadGateway, p.status)
	assert.Contains(t, p.body, "Failed to add user")
}

func TestCreateLoanForm(t *testing.T) {
	_, backend := newFakeBackend(t)
	b := newBrowser(t, newTestServer(t, backend.URL))
	b.login("librarian")

	p := b.post("/loans/new", url.Values{"userId": {""}, "bookId": {"1"}})
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "is required")

	p = b.post("/loans/new", url.Values{"userId": {"2"}, "bookId": {"1"}})
	assert.Equal(t, "/loans", p.location)
}
