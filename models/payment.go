package models

// PaymentStatus is the reconciliation state of a payment record.
// Persisted string values; do not change.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"  // student submitted, not yet confirmed
	PaymentDiterima PaymentStatus = "diterima" // confirmed by admin
)

// Payment records funds submitted or confirmed against one bill. A payment
// is created either by a student submission (pending) or directly by an
// admin confirmation (diterima); it is never deleted. At most one pending
// payment exists per bill.
type Payment struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	IDTagihan    string        `gorm:"column:id_tagihan;size:36;not null;index" json:"id_tagihan"`
	IDSiswa      string        `gorm:"column:id_siswa;size:36;not null;index" json:"id_siswa"`
	TanggalBayar string        `gorm:"size:64;not null" json:"tanggal_bayar"` // ISO-8601 UTC
	Metode       string        `gorm:"size:32;not null" json:"metode"`
	Jumlah       int64         `gorm:"not null" json:"jumlah"`
	Status       PaymentStatus `gorm:"size:32;not null;index" json:"status"`
	NamaPengirim string        `gorm:"size:255" json:"nama_pengirim,omitempty"`
	BankPengirim string        `gorm:"size:128" json:"bank_pengirim,omitempty"`

	// Receipt attachment (proof of transfer), set by AttachReceipt.
	BuktiPath string `gorm:"size:512" json:"bukti_path,omitempty"`

	// Best-effort OCR cross-check of the printed transfer amount against
	// Jumlah. Zero OCRAmount means no readable amount was found.
	OCRAmount      int64 `gorm:"column:ocr_amount" json:"ocr_amount,omitempty"`
	AmountMismatch bool  `gorm:"default:false" json:"amount_mismatch,omitempty"`
}
