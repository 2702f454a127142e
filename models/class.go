package models

// DefaultNominalSPP is the fallback monthly tuition used when a student's
// class cannot be resolved at bill generation time.
const DefaultNominalSPP int64 = 500000

// Class holds the monthly tuition (SPP) for one class. Deleting a class is
// refused while any student still references it by name.
type Class struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	NamaKelas  string `gorm:"size:64;not null;uniqueIndex" json:"nama_kelas"`
	NominalSPP int64  `gorm:"column:nominal_spp;not null" json:"nominal_spp"`
	CreatedAt  string `gorm:"size:64;not null" json:"created_at"` // ISO-8601 UTC
}
