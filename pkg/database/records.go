package database

import (
	"strconv"
	"time"

	"libadmin/pkg/models"
)

type BookRecord struct {
	ID              uint   `gorm:"primaryKey"`
	ISBN            string `gorm:"uniqueIndex;size:13;not null"`
	Title           string `gorm:"not null"`
	Author          string `gorm:"not null"`
	Publisher       string
	PublishYear     int
	AvailableCopies int
	Deleted         bool `gorm:"default:false"`
}

func (BookRecord) TableName() string { return "books" }

type UserRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:80;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:32;not null"`
	Email        string
	FullUsername string
}

func (UserRecord) TableName() string { return "users" }

type LoanRecord struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"index;not null"`
	BookID     uint `gorm:"index;not null"`
	LoanDate   *time.Time
	LoanEnd    *time.Time
	ReturnDate *time.Time
	Accepted   bool `gorm:"default:false"`

	User UserRecord `gorm:"foreignKey:UserID"`
	Book BookRecord `gorm:"foreignKey:BookID"`
}

func (LoanRecord) TableName() string { return "loans" }

func formatID(id uint) models.ID {
	return models.ID(strconv.FormatUint(uint64(id), 10))
}

// ParseID converts a wire id to a primary key.
func ParseID(id models.ID) (uint, error) {
	n, err := strconv.ParseUint(id.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return uint(n), nil
}

func (r BookRecord) Model() models.Book {
	return models.Book{
		ID:              formatID(r.ID),
		ISBN:            r.ISBN,
		Title:           r.Title,
		Author:          r.Author,
		Publisher:       r.Publisher,
		PublishYear:     r.PublishYear,
		AvailableCopies: r.AvailableCopies,
		Deleted:         r.Deleted,
	}
}

func BookFromModel(b models.Book) BookRecord {
	return BookRecord{
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		PublishYear:     b.PublishYear,
		AvailableCopies: b.AvailableCopies,
	}
}

// Model never carries the password hash.
func (r UserRecord) Model() models.User {
	return models.User{
		ID:           formatID(r.ID),
		Username:     r.Username,
		Role:         models.Role(r.Role),
		Email:        r.Email,
		FullUsername: r.FullUsername,
	}
}

func dateOf(t *time.Time) *models.Date {
	if t == nil {
		return nil
	}
	d := models.NewDate(*t)
	return &d
}

func (r LoanRecord) Model() models.Loan {
	return models.Loan{
		ID:         formatID(r.ID),
		LoanDate:   dateOf(r.LoanDate),
		LoanEnd:    dateOf(r.LoanEnd),
		ReturnDate: dateOf(r.ReturnDate),
		User:       models.UserRef{ID: formatID(r.UserID), FullUsername: r.User.FullUsername},
		Book:       models.BookRef{ID: formatID(r.BookID), Title: r.Book.Title},
		Accepted:   r.Accepted,
	}
}
