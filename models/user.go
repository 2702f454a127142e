package models

// Staff roles. Students authenticate through the students table and always
// carry RoleSiswa in their token.
const (
	RoleAdmin  = "admin"
	RoleKepsek = "kepsek"
	RoleSiswa  = "siswa"
)

// User is a staff account (admin or kepsek). Students are not stored here.
type User struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	Username       string `gorm:"size:255;not null;uniqueIndex" json:"username"`
	HashedPassword []byte `gorm:"not null" json:"-"`
	Nama           string `gorm:"size:255;not null" json:"nama"`
	Role           string `gorm:"size:32;not null" json:"role"`
	CreatedAt      string `gorm:"size:64;not null" json:"created_at"` // ISO-8601 UTC
}
