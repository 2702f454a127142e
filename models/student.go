package models

// Student is an enrolled student. Bills and payments reference it by id
// only; the class link is by class name (Kelas), matching the registry's
// import format.
type Student struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	NIS            string `gorm:"column:nis;size:64;not null;uniqueIndex" json:"nis"`
	Nama           string `gorm:"size:255;not null" json:"nama"`
	Kelas          string `gorm:"size:64;not null;index" json:"kelas"`
	NoWA           string `gorm:"column:no_wa;size:64" json:"no_wa"`
	Username       string `gorm:"size:255;not null;uniqueIndex" json:"username"`
	HashedPassword []byte `gorm:"not null" json:"-"`
	CreatedAt      string `gorm:"size:64;not null" json:"created_at"` // ISO-8601 UTC
}
