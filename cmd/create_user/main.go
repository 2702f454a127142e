// Command create_user adds a staff account (admin or kepsek) directly to
// the database, for bootstrapping environments where the default seeded
// accounts have been removed.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sppapp/models"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("usage: go run ./cmd/create_user <username> <password> <admin|kepsek> [nama]")
		os.Exit(2)
	}
	username := os.Args[1]
	password := os.Args[2]
	role := os.Args[3]
	nama := username
	if len(os.Args) > 4 {
		nama = os.Args[4]
	}

	if role != models.RoleAdmin && role != models.RoleKepsek {
		log.Fatalf("role must be %s or %s", models.RoleAdmin, models.RoleKepsek)
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%s)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	user := models.User{
		ID:             uuid.NewString(),
		Username:       username,
		HashedPassword: hpw,
		Nama:           nama,
		Role:           role,
		CreatedAt:      models.ISOTime(time.Now()),
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created %s user %s id=%s\n", role, username, user.ID)
}
