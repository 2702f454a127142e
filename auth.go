package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"sppapp/models"
)

// AuthUser is the identity resolved at login, regardless of whether it came
// from the users (staff) or students table.
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nama     string `json:"nama"`
	Role     string `json:"role"`
	NIS      string `json:"nis,omitempty"`
}

// Authenticate checks credentials against staff first, then students,
// mirroring the single login form both roles share.
func Authenticate(username, password string) (AuthUser, error) {
	username = strings.TrimSpace(username)

	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err == nil {
		if bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)) == nil {
			return AuthUser{ID: user.ID, Username: user.Username, Nama: user.Nama, Role: user.Role}, nil
		}
		return AuthUser{}, fmt.Errorf("username atau password salah")
	}

	var student models.Student
	if err := db.Where("username = ?", username).First(&student).Error; err == nil {
		if bcrypt.CompareHashAndPassword(student.HashedPassword, []byte(password)) == nil {
			return AuthUser{ID: student.ID, Username: student.Username, Nama: student.Nama, Role: models.RoleSiswa, NIS: student.NIS}, nil
		}
	}
	return AuthUser{}, fmt.Errorf("username atau password salah")
}

// issueToken signs an HS256 access token for the authenticated identity.
func issueToken(u AuthUser) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  u.ID,
		"username": u.Username,
		"role":     u.Role,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}
