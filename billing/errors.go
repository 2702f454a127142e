package billing

import "errors"

var (
	// not found
	ErrBillNotFound    = errors.New("tagihan tidak ditemukan")
	ErrPaymentNotFound = errors.New("pembayaran tidak ditemukan")
	ErrStudentNotFound = errors.New("siswa tidak ditemukan")
	ErrReceiptNotFound = errors.New("bukti pembayaran tidak ditemukan")

	// conflict: a state-transition precondition failed
	ErrAlreadyPaid      = errors.New("tagihan sudah lunas")
	ErrAlreadyAwaiting  = errors.New("tagihan sudah menunggu konfirmasi")
	ErrDuplicatePending = errors.New("sudah ada pembayaran pending untuk tagihan ini")
	ErrBillSettled      = errors.New("bukti tidak dapat dilampirkan pada tagihan yang sudah lunas")

	// invalid input
	ErrUnsupportedReceiptType = errors.New("tipe file bukti tidak didukung (pdf/jpeg/png)")
	ErrUnknownStatus          = errors.New("status tagihan tidak dikenal")

	// authorization
	ErrForbidden = errors.New("tidak berhak mengakses bukti pembayaran ini")
)

// IsConflict reports whether err is a state-transition conflict, as opposed
// to a missing record or bad input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadyAwaiting) ||
		errors.Is(err, ErrDuplicatePending) ||
		errors.Is(err, ErrBillSettled)
}

// IsNotFound reports whether err refers to an absent bill, payment, student
// or receipt.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBillNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrReceiptNotFound)
}
