package models

// BillStatus is the settlement state of a monthly tuition bill. The string
// values are persisted and consumed by existing clients; do not change them.
type BillStatus string

const (
	BillBelum    BillStatus = "belum"               // issued, nothing received
	BillMenunggu BillStatus = "menunggu_konfirmasi" // student submitted, awaiting admin
	BillLunas    BillStatus = "lunas"               // settled
)

// Valid reports whether s is one of the persisted bill statuses.
func (s BillStatus) Valid() bool {
	switch s {
	case BillBelum, BillMenunggu, BillLunas:
		return true
	}
	return false
}

// CanTransition reports whether a bill may move from s to target.
// Lunas is terminal: no transition leaves a settled bill.
func (s BillStatus) CanTransition(target BillStatus) bool {
	if s == target {
		return false
	}
	switch s {
	case BillBelum:
		return target == BillMenunggu || target == BillLunas
	case BillMenunggu:
		return target == BillLunas || target == BillBelum
	}
	return false
}

// Bill is one student's tuition obligation for one (bulan, tahun) period.
// Exactly one bill exists per (student, bulan, tahun); generation enforces
// this. Jumlah is fixed at generation time and never mutated afterwards.
type Bill struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	IDSiswa   string     `gorm:"column:id_siswa;size:36;not null;index" json:"id_siswa"`
	Bulan     string     `gorm:"size:32;not null" json:"bulan"`
	Tahun     int        `gorm:"not null" json:"tahun"`
	Jumlah    int64      `gorm:"not null" json:"jumlah"`
	Status    BillStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt string     `gorm:"size:64;not null" json:"created_at"` // ISO-8601 UTC
}
