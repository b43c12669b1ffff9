package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"libadmin/pkg/config"
	"libadmin/pkg/database"
	"libadmin/pkg/models"
)

var (
	store      *database.Store
	jwtCfg     config.JWTConfig
	bcryptCost = bcrypt.DefaultCost
)

func main() {
	log.Println("Starting library backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	jwtCfg = cfg.Stub.JWT

	db, err := database.OpenWithRetry(cfg.Stub.Database, 10, 5*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	store = database.NewStore(db)
	if cfg.Stub.Seed {
		seedTestData(context.Background())
	}

	server := setupRouter()
	log.Printf("Library backend starting on %s", cfg.Stub.Address)
	if err := server.Run(cfg.Stub.Address); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func setupRouter() *gin.Engine {
	server := gin.Default()
	server.POST("/login", login)
	server.GET("/manage/health", healthCheck)

	api := server.Group("/", authRequired())
	api.GET("/book/getAll", getAllBooks)
	api.POST("/book/add", requireRole(models.RoleLibrarian), addBook)
	api.PUT("/book/update/:isbn", requireRole(models.RoleLibrarian), updateBook)
	api.DELETE("/book/delete/:isbn", requireRole(models.RoleLibrarian), deleteBook)

	api.GET("/loan/getAll", getAllLoans)
	api.POST("/loan/add", addLoan)
	api.PUT("/loan/accept/:id", requireRole(models.RoleLibrarian), acceptLoan)
	api.PUT("/loan/return/:id", requireRole(models.RoleLibrarian), returnLoan)

	api.POST("/user/add", requireRole(models.RoleLibrarian), addUser)
	api.GET("/user/me/role", currentRole)
	api.GET("/user/me/id", currentID)
	return server
}

func healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

func seedTestData(ctx context.Context) {
	empty, err := store.Empty(ctx)
	if err != nil {
		log.Printf("Failed to inspect database before seeding: %v", err)
		return
	}
	if !empty {
		return
	}

	users := []models.User{
		{Username: "librarian", Password: "password1", Role: models.RoleLibrarian, Email: "librarian@library.local", FullUsername: "Head Librarian"},
		{Username: "reader", Password: "password1", Role: models.RoleReader, Email: "reader@library.local", FullUsername: "Alice Smith"},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			log.Printf("Failed to hash password for %s: %v", u.Username, err)
			continue
		}
		if _, err := store.CreateUser(ctx, u, string(hash)); err != nil {
			log.Printf("Failed to create user %s: %v", u.Username, err)
		}
	}

	books := []models.Book{
		{ISBN: "9783161484100", Title: "Crime and Punishment", Author: "Fyodor Dostoevsky", Publisher: "The Russian Messenger", PublishYear: 1866, AvailableCopies: 5},
		{ISBN: "9780451524935", Title: "1984", Author: "George Orwell", Publisher: "Secker & Warburg", PublishYear: 1949, AvailableCopies: 3},
		{ISBN: "9780061120084", Title: "To Kill a Mockingbird", Author: "Harper Lee", Publisher: "J. B. Lippincott & Co.", PublishYear: 1960, AvailableCopies: 2},
		{ISBN: "9780141439518", Title: "Pride and Prejudice", Author: "Jane Austen", Publisher: "T. Egerton", PublishYear: 1813, AvailableCopies: 4},
	}
	for _, b := range books {
		if _, err := store.CreateBook(ctx, b); err != nil {
			log.Printf("Failed to create book %s: %v", b.ISBN, err)
		}
	}
	log.Println("Library test data seeded")
}
