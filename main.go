package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"sppapp/billing"
	"sppapp/pkg/notify"
	"sppapp/pkg/ocr"
	"sppapp/pkg/receiptstore"
	"sppapp/pkg/statcache"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// receiptScanner adapts pkg/ocr to the billing.AmountScanner interface.
type receiptScanner struct{}

func (receiptScanner) ReadAmount(path string) (int64, error) { return ocr.ReadAmount(path) }

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./sppapp migrate`
	// Runs AutoMigrate and seeding then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	receipts, err := receiptstore.New(uploadBaseDir())
	if err != nil {
		log.Fatal(err)
	}
	svc := billing.NewService(db, receipts, notify.NewWhatsAppMock(), receiptScanner{})
	stats := statcache.New(os.Getenv("REDIS_ADDR"), time.Minute)

	r := gin.Default()
	setupRoutes(r, svc, receipts, stats)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// uploadBaseDir returns the base directory for stored receipts
// (configurable via UPLOAD_BASE env).
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}
