package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleLibrarian Role = "ROLE_LIBRARIAN"
	RoleReader    Role = "ROLE_READER"
)

func (r Role) Valid() bool {
	return r == RoleLibrarian || r == RoleReader
}

// ParseRole normalizes the role strings returned by /user/me/role, which may
// come with or without the ROLE_ prefix.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s != "" && !strings.HasPrefix(s, "ROLE_") {
		s = "ROLE_" + s
	}
	return Role(s)
}

func (r Role) Label() string {
	switch r {
	case RoleLibrarian:
		return "Librarian"
	case RoleReader:
		return "Reader"
	default:
		return string(r)
	}
}

// ID is a record identifier. Backends send either JSON numbers or strings;
// both decode into the same value.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type Book struct {
	ID              ID     `json:"id,omitempty"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	PublishYear     int    `json:"publishYear"`
	AvailableCopies int    `json:"availableCopies"`
	Deleted         bool   `json:"deleted"`

	// IsNew marks a row inserted locally and not yet persisted.
	IsNew bool `json:"-"`
}

// BookUpdate is the partial body sent to /book/update/{isbn}.
type BookUpdate struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	Publisher       *string `json:"publisher,omitempty"`
	PublishYear     *int    `json:"publishYear,omitempty"`
	AvailableCopies *int    `json:"availableCopies,omitempty"`
}

// MutableFields returns the fields an in-place edit may change. The ISBN is
// the update key and the deleted flag is owned by the backend.
func (b Book) MutableFields() BookUpdate {
	return BookUpdate{
		Title:           &b.Title,
		Author:          &b.Author,
		Publisher:       &b.Publisher,
		PublishYear:     &b.PublishYear,
		AvailableCopies: &b.AvailableCopies,
	}
}

// Apply copies every set field of u onto b.
func (u BookUpdate) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Publisher != nil {
		b.Publisher = *u.Publisher
	}
	if u.PublishYear != nil {
		b.PublishYear = *u.PublishYear
	}
	if u.AvailableCopies != nil {
		b.AvailableCopies = *u.AvailableCopies
	}
}

// VisibleBooks drops soft-deleted books; readers never see them.
func VisibleBooks(books []Book) []Book {
	visible := make([]Book, 0, len(books))
	for _, b := range books {
		if !b.Deleted {
			visible = append(visible, b)
		}
	}
	return visible
}

type User struct {
	ID           ID     `json:"id,omitempty"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	Email        string `json:"email"`
	FullUsername string `json:"fullUsername"`
}

// Redacted returns a copy without the password, for display and logs.
func (u User) Redacted() User {
	u.Password = ""
	return u
}

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
