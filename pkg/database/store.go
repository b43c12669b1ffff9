package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"libadmin/pkg/models"
)

// LoanPeriod is how long an accepted loan runs.
const LoanPeriod = 14 * 24 * time.Hour

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Store) Books(ctx context.Context) ([]models.Book, error) {
	var records []BookRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, WrapError(err)
	}
	books := make([]models.Book, len(records))
	for i, r := range records {
		books[i] = r.Model()
	}
	return books, nil
}

func (s *Store) bookByISBN(tx *gorm.DB, isbn string) (BookRecord, error) {
	var rec BookRecord
	err := tx.Where("isbn = ?", isbn).First(&rec).Error
	return rec, WrapError(err)
}

func (s *Store) BookByISBN(ctx context.Context, isbn string) (models.Book, error) {
	rec, err := s.bookByISBN(s.db.WithContext(ctx), isbn)
	if err != nil {
		return models.Book{}, err
	}
	return rec.Model(), nil
}

func (s *Store) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	rec := BookFromModel(b)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.Book{}, WrapError(err)
	}
	return rec.Model(), nil
}

// UpdateBook applies the set fields of u to the book with the given ISBN.
func (s *Store) UpdateBook(ctx context.Context, isbn string, u models.BookUpdate) (models.Book, error) {
	var out models.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.bookByISBN(tx, isbn)
		if err != nil {
			return err
		}
		changes := map[string]any{}
		if u.Title != nil {
			changes["title"] = *u.Title
		}
		if u.Author != nil {
			changes["author"] = *u.Author
		}
		if u.Publisher != nil {
			changes["publisher"] = *u.Publisher
		}
		if u.PublishYear != nil {
			changes["publish_year"] = *u.PublishYear
		}
		if u.AvailableCopies != nil {
			changes["available_copies"] = *u.AvailableCopies
		}
		if len(changes) > 0 {
			if err := tx.Model(&rec).Updates(changes).Error; err != nil {
				return WrapError(err)
			}
		}
		rec, err = s.bookByISBN(tx, isbn)
		out = rec.Model()
		return err
	})
	return out, err
}

// DeleteBook removes a book nobody ever borrowed. A book referenced by loans
// is flagged deleted instead so loan history keeps its title; soft reports
// which of the two happened.
func (s *Store) DeleteBook(ctx context.Context, isbn string) (soft bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.bookByISBN(tx, isbn)
		if err != nil {
			return err
		}
		var refs int64
		if err := tx.Model(&LoanRecord{}).Where("book_id = ?", rec.ID).Count(&refs).Error; err != nil {
			return WrapError(err)
		}
		if refs > 0 {
			soft = true
			return WrapError(tx.Model(&rec).Update("deleted", true).Error)
		}
		return WrapError(tx.Delete(&rec).Error)
	})
	return soft, err
}

func (s *Store) loan(tx *gorm.DB, id uint) (LoanRecord, error) {
	var rec LoanRecord
	err := tx.Preload("User").Preload("Book").First(&rec, id).Error
	return rec, WrapError(err)
}

func (s *Store) Loans(ctx context.Context) ([]models.Loan, error) {
	var records []LoanRecord
	err := s.db.WithContext(ctx).Preload("User").Preload("Book").Order("id").Find(&records).Error
	if err != nil {
		return nil, WrapError(err)
	}
	loans := make([]models.Loan, len(records))
	for i, r := range records {
		loans[i] = r.Model()
	}
	return loans, nil
}

// CreateLoan records an unaccepted loan request. The book must exist, not be
// deleted and have a copy on the shelf.
func (s *Store) CreateLoan(ctx context.Context, l models.Loan) (models.Loan, error) {
	userID, err := ParseID(l.User.ID)
	if err != nil {
		return models.Loan{}, err
	}
	bookID, err := ParseID(l.Book.ID)
	if err != nil {
		return models.Loan{}, err
	}

	var out models.Loan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user UserRecord
		if err := tx.First(&user, userID).Error; err != nil {
			return WrapError(err)
		}
		var book BookRecord
		if err := tx.First(&book, bookID).Error; err != nil {
			return WrapError(err)
		}
		if book.Deleted || book.AvailableCopies <= 0 {
			return fmt.Errorf("%w: book %s is not available", ErrConflict, book.ISBN)
		}
		rec := LoanRecord{UserID: userID, BookID: bookID}
		if err := tx.Create(&rec).Error; err != nil {
			return WrapError(err)
		}
		created, err := s.loan(tx, rec.ID)
		out = created.Model()
		return err
	})
	return out, err
}

// AcceptLoan starts a pending loan today for LoanPeriod and takes a copy off
// the shelf.
func (s *Store) AcceptLoan(ctx context.Context, id uint) (models.Loan, error) {
	return s.transition(ctx, id, func(tx *gorm.DB, rec *LoanRecord) error {
		if rec.Accepted || rec.ReturnDate != nil {
			return fmt.Errorf("%w: loan %d is not pending", ErrConflict, rec.ID)
		}
		if rec.Book.AvailableCopies <= 0 {
			return fmt.Errorf("%w: no copies of %s left", ErrConflict, rec.Book.ISBN)
		}
		start := s.today()
		end := start.Add(LoanPeriod)
		rec.Accepted = true
		rec.LoanDate = &start
		rec.LoanEnd = &end
		return tx.Model(&BookRecord{}).Where("id = ?", rec.BookID).
			Update("available_copies", gorm.Expr("available_copies - 1")).Error
	})
}

// ReturnLoan closes an active loan today and puts the copy back.
func (s *Store) ReturnLoan(ctx context.Context, id uint) (models.Loan, error) {
	return s.transition(ctx, id, func(tx *gorm.DB, rec *LoanRecord) error {
		if !rec.Accepted || rec.ReturnDate != nil {
			return fmt.Errorf("%w: loan %d is not active", ErrConflict, rec.ID)
		}
		today := s.today()
		rec.ReturnDate = &today
		return tx.Model(&BookRecord{}).Where("id = ?", rec.BookID).
			Update("available_copies", gorm.Expr("available_copies + 1")).Error
	})
}

func (s *Store) transition(ctx context.Context, id uint, apply func(tx *gorm.DB, rec *LoanRecord) error) (models.Loan, error) {
	var out models.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.loan(tx, id)
		if err != nil {
			return err
		}
		if err := apply(tx, &rec); err != nil {
			return WrapError(err)
		}
		err = tx.Model(&rec).Select("accepted", "loan_date", "loan_end", "return_date").Updates(&LoanRecord{
			Accepted:   rec.Accepted,
			LoanDate:   rec.LoanDate,
			LoanEnd:    rec.LoanEnd,
			ReturnDate: rec.ReturnDate,
		}).Error
		if err != nil {
			return WrapError(err)
		}
		rec, err = s.loan(tx, id)
		out = rec.Model()
		return err
	})
	return out, err
}

// CreateUser stores u with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, u models.User, passwordHash string) (models.User, error) {
	rec := UserRecord{
		Username:     u.Username,
		PasswordHash: passwordHash,
		Role:         string(u.Role),
		Email:        u.Email,
		FullUsername: u.FullUsername,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.User{}, WrapError(err)
	}
	return rec.Model(), nil
}

// UserByUsername returns the full record, hash included, for login checks.
func (s *Store) UserByUsername(ctx context.Context, username string) (UserRecord, error) {
	var rec UserRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error
	return rec, WrapError(err)
}

func (s *Store) UserByID(ctx context.Context, id uint) (models.User, error) {
	var rec UserRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return models.User{}, WrapError(err)
	}
	return rec.Model(), nil
}

// Empty reports whether no users exist yet, which is when seeding runs.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&UserRecord{}).Count(&n).Error; err != nil {
		return false, WrapError(err)
	}
	return n == 0, nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
