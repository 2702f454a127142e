package main

import (
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

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	if shouldMigrate {
		migrateAll(db)
	}
	seedDB(db)
}

// migrateAll migrates models individually so a failure on one doesn't block
// the others.
func migrateAll(db *gorm.DB) {
	for _, m := range []interface{}{
		&models.User{},
		&models.Student{},
		&models.Class{},
		&models.Bill{},
		&models.Payment{},
	} {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("migration warning (%T): %v", m, err)
		}
	}
}

// seedDB ensures the default staff accounts and sample classes exist.
func seedDB(db *gorm.DB) {
	now := models.ISOTime(time.Now())

	seedUser := func(username, password, nama, role string) {
		var count int64
		db.Model(&models.User{}).Where("username = ?", username).Count(&count)
		if count > 0 {
			return
		}
		hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		u := models.User{
			ID:             uuid.NewString(),
			Username:       username,
			HashedPassword: hashed,
			Nama:           nama,
			Role:           role,
			CreatedAt:      now,
		}
		if err := db.Create(&u).Error; err != nil {
			log.Printf("seed user %s: %v", username, err)
			return
		}
		log.Printf("Seeded %s user: username=%s", role, username)
	}
	seedUser("admin", "admin123", "Administrator", models.RoleAdmin)
	seedUser("kepsek", "kepsek123", "Kepala Sekolah", models.RoleKepsek)

	var count int64
	db.Model(&models.Class{}).Count(&count)
	if count == 0 {
		classes := []models.Class{
			{ID: uuid.NewString(), NamaKelas: "X-1", NominalSPP: 500000, CreatedAt: now},
			{ID: uuid.NewString(), NamaKelas: "XI-1", NominalSPP: 550000, CreatedAt: now},
			{ID: uuid.NewString(), NamaKelas: "XII-1", NominalSPP: 600000, CreatedAt: now},
		}
		for _, c := range classes {
			if err := db.Create(&c).Error; err != nil {
				log.Printf("seed class %s: %v", c.NamaKelas, err)
			}
		}
	}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
