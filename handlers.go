package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sppapp/billing"
	"sppapp/models"
	"sppapp/pkg/receiptstore"
	"sppapp/pkg/statcache"
)

// wired in setupRoutes; handlers are free functions like the rest of the
// package and share these.
var (
	svcBilling   *billing.Service
	receiptFiles *receiptstore.Store
	statsCache   *statcache.Cache
)

func setupRoutes(r *gin.Engine, svc *billing.Service, receipts *receiptstore.Store, stats *statcache.Cache) {
	svcBilling = svc
	receiptFiles = receipts
	statsCache = stats

	api := r.Group("/api")
	api.POST("/auth/login", loginHandler)

	authGroup := api.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/auth/me", meHandler)

	// registry (admin)
	authGroup.GET("/students", listStudentsHandler)
	authGroup.POST("/students", createStudentHandler)
	authGroup.PUT("/students/:id", updateStudentHandler)
	authGroup.DELETE("/students/:id", deleteStudentHandler)
	authGroup.GET("/classes", listClassesHandler)
	authGroup.POST("/classes", createClassHandler)
	authGroup.DELETE("/classes/:id", deleteClassHandler)

	// bill-payment lifecycle
	authGroup.GET("/bills", listBillsHandler)
	authGroup.POST("/bills/generate", generateBillsHandler)
	authGroup.PUT("/bills/:id/confirm", confirmBillHandler)
	authGroup.GET("/payments", listPaymentsHandler)
	authGroup.POST("/payments", submitPaymentHandler)
	authGroup.POST("/payments/:id/receipt", attachReceiptHandler)
	authGroup.GET("/payments/:id/receipt", fetchReceiptHandler)
	authGroup.POST("/whatsapp/send", sendWhatsAppHandler)

	// reporting and student portal
	authGroup.GET("/dashboard/stats", dashboardStatsHandler)
	authGroup.GET("/reports/daily", dailyReportHandler)
	authGroup.GET("/reports/monthly", monthlyReportHandler)
	authGroup.GET("/reports/export-excel", exportExcelHandler)
	authGroup.GET("/reports/export-pdf", exportPDFHandler)
	authGroup.GET("/student/profile/:id", studentProfileHandler)
	authGroup.GET("/student/bills/:id", studentBillsHandler)
	authGroup.GET("/student/payments/:id", studentPaymentsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		token, err := jwt.Parse(authHeader[7:], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		userID, _ := claims["user_id"].(string)
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("user_id", userID)
		c.Set("username", username)
		c.Set("role", role)
		c.Next()
	}
}

// requireAdmin aborts with 403 unless the token carries the admin role.
// Returns false when aborted.
func requireAdmin(c *gin.Context) bool {
	if c.GetString("role") != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "hanya admin yang dapat melakukan aksi ini"})
		c.Abort()
		return false
	}
	return true
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, err := issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func meHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.GetString("user_id"),
		"username": c.GetString("username"),
		"role":     c.GetString("role"),
	})
}

// --- student registry ---

type studentRequest struct {
	NIS      string `json:"nis" binding:"required"`
	Nama     string `json:"nama" binding:"required"`
	Kelas    string `json:"kelas" binding:"required"`
	NoWA     string `json:"no_wa"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

func listStudentsHandler(c *gin.Context) {
	var students []models.Student
	if err := db.Order("nama").Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, students)
}

func createStudentHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password wajib diisi"})
		return
	}
	var count int64
	db.Model(&models.Student{}).
		Where("username = ? OR nis = ?", req.Username, req.NIS).
		Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "NIS atau username sudah terdaftar"})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}
	student := models.Student{
		ID:             uuid.NewString(),
		NIS:            req.NIS,
		Nama:           req.Nama,
		Kelas:          req.Kelas,
		NoWA:           req.NoWA,
		Username:       req.Username,
		HashedPassword: hashed,
		CreatedAt:      models.ISOTime(time.Now()),
	}
	if err := db.Create(&student).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "NIS atau username sudah terdaftar"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, student)
}

func updateStudentHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	id := c.Param("id")
	var student models.Student
	if err := db.First(&student, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "siswa tidak ditemukan"})
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updates := map[string]interface{}{
		"nis":      req.NIS,
		"nama":     req.Nama,
		"kelas":    req.Kelas,
		"no_wa":    req.NoWA,
		"username": req.Username,
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
			return
		}
		updates["hashed_password"] = hashed
	}
	if err := db.Model(&student).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "NIS atau username sudah terdaftar"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "siswa berhasil diupdate"})
}

func deleteStudentHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	res := db.Delete(&models.Student{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "siswa tidak ditemukan"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "siswa berhasil dihapus"})
}

// --- class registry ---

func listClassesHandler(c *gin.Context) {
	var classes []models.Class
	if err := db.Order("nama_kelas").Find(&classes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, classes)
}

func createClassHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req struct {
		NamaKelas  string `json:"nama_kelas" binding:"required"`
		NominalSPP int64  `json:"nominal_spp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	class := models.Class{
		ID:         uuid.NewString(),
		NamaKelas:  req.NamaKelas,
		NominalSPP: req.NominalSPP,
		CreatedAt:  models.ISOTime(time.Now()),
	}
	if err := db.Create(&class).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "nama kelas sudah terdaftar"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, class)
}

func deleteClassHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var class models.Class
	if err := db.First(&class, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "kelas tidak ditemukan"})
		return
	}
	var refs int64
	db.Model(&models.Student{}).Where("kelas = ?", class.NamaKelas).Count(&refs)
	if refs > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "kelas masih digunakan oleh siswa"})
		return
	}
	if err := db.Delete(&class).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "kelas berhasil dihapus"})
}

// studentSummary is the registry excerpt embedded in bill/payment listings.
type studentSummary struct {
	Nama  string `json:"nama"`
	NIS   string `json:"nis"`
	Kelas string `json:"kelas"`
}

func summarizeStudents(ids []string) map[string]studentSummary {
	out := make(map[string]studentSummary, len(ids))
	if len(ids) == 0 {
		return out
	}
	var students []models.Student
	if err := db.Where("id IN ?", ids).Find(&students).Error; err != nil {
		return out
	}
	for _, s := range students {
		out[s.ID] = studentSummary{Nama: s.Nama, NIS: s.NIS, Kelas: s.Kelas}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
