package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/database"
	"libadmin/pkg/models"
	"libadmin/pkg/validation"
)

// respondError maps storage errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func getAllBooks(c *gin.Context) {
	books, err := store.Books(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func addBook(c *gin.Context) {
	var book models.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validation.Book(book); err != nil {
		respondError(c, err)
		return
	}
	created, err := store.CreateBook(c.Request.Context(), book)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func updateBook(c *gin.Context) {
	var update models.BookUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if (update.Title != nil && *update.Title == "") || (update.Author != nil && *update.Author == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and author cannot be blank"})
		return
	}
	if (update.AvailableCopies != nil && *update.AvailableCopies < 0) || (update.PublishYear != nil && *update.PublishYear < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "counts cannot be negative"})
		return
	}
	book, err := store.UpdateBook(c.Request.Context(), c.Param("isbn"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func deleteBook(c *gin.Context) {
	soft, err := store.DeleteBook(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondError(c, err)
		return
	}
	if soft {
		c.JSON(http.StatusAccepted, gin.H{"disposition": apiclient.DispositionSoftDeleted})
		return
	}
	c.Status(http.StatusNoContent)
}

func getAllLoans(c *gin.Context) {
	loans, err := store.Loans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

// addLoan records a loan request. Readers may only borrow for themselves.
func addLoan(c *gin.Context) {
	var loan models.Loan
	if err := c.ShouldBindJSON(&loan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validation.LoanRequest(loan); err != nil {
		respondError(c, err)
		return
	}
	if models.Role(c.GetString(ctxRole)) != models.RoleLibrarian {
		self, err := database.ParseID(loan.User.ID)
		if err != nil || self != c.GetUint(ctxUserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "readers can only borrow for themselves"})
			return
		}
	}
	created, err := store.CreateLoan(c.Request.Context(), loan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func acceptLoan(c *gin.Context) {
	id, err := database.ParseID(models.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	loan, err := store.AcceptLoan(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func returnLoan(c *gin.Context) {
	id, err := database.ParseID(models.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	loan, err := store.ReturnLoan(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func addUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validation.User(user); err != nil {
		respondError(c, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcryptCost)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password cannot be hashed"})
		return
	}
	created, err := store.CreateUser(c.Request.Context(), user, string(hash))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
