package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sppapp/models"
)

// ReceiptStore persists proof-of-transfer blobs keyed by file name. Save
// returns the stored reference handed back to clients by FetchReceipt.
type ReceiptStore interface {
	Save(name string, data []byte) (string, error)
}

// Notifier delivers a message to a student's contact handle. Delivery is
// best-effort: implementations must never block the caller on failure and
// have no error channel back into the lifecycle.
type Notifier interface {
	Send(to, message string)
}

// AmountScanner reads the printed transfer amount off a stored receipt.
// Used for the OCR cross-check; may be nil to disable scanning.
type AmountScanner interface {
	ReadAmount(path string) (int64, error)
}

// receiptExts maps the accepted receipt content types to file extensions.
var receiptExts = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Service owns every write to bill and payment status. All state lives in
// the database; each operation reads current records, decides the next
// state and writes it back inside one transaction. The bill-status write
// itself is a conditional UPDATE gated on the expected prior status, so two
// racing submissions (or a submission racing a confirmation) cannot both
// succeed.
type Service struct {
	db       *gorm.DB
	receipts ReceiptStore
	notifier Notifier
	scanner  AmountScanner
	now      func() time.Time
}

func NewService(db *gorm.DB, receipts ReceiptStore, notifier Notifier, scanner AmountScanner) *Service {
	return &Service{
		db:       db,
		receipts: receipts,
		notifier: notifier,
		scanner:  scanner,
		now:      time.Now,
	}
}

// Generate creates one unpaid bill per student for the (bulan, tahun)
// period, skipping students that already have one. Idempotent: a second run
// for the same period creates nothing. Returns the number of bills created.
func (s *Service) Generate(ctx context.Context, bulan string, tahun int) (int, error) {
	db := s.db.WithContext(ctx)

	var students []models.Student
	if err := db.Find(&students).Error; err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}

	// Tuition per class, resolved once up front.
	var classes []models.Class
	if err := db.Find(&classes).Error; err != nil {
		return 0, fmt.Errorf("list classes: %w", err)
	}
	nominals := make(map[string]int64, len(classes))
	for _, c := range classes {
		nominals[c.NamaKelas] = c.NominalSPP
	}

	created := 0
	for _, st := range students {
		var count int64
		err := db.Model(&models.Bill{}).
			Where("id_siswa = ? AND bulan = ? AND tahun = ?", st.ID, bulan, tahun).
			Count(&count).Error
		if err != nil {
			return created, fmt.Errorf("check existing bill for %s: %w", st.ID, err)
		}
		if count > 0 {
			continue
		}
		jumlah, ok := nominals[st.Kelas]
		if !ok {
			jumlah = models.DefaultNominalSPP
		}
		bill := models.Bill{
			ID:        uuid.NewString(),
			IDSiswa:   st.ID,
			Bulan:     bulan,
			Tahun:     tahun,
			Jumlah:    jumlah,
			Status:    models.BillBelum,
			CreatedAt: models.ISOTime(s.now()),
		}
		if err := db.Create(&bill).Error; err != nil {
			return created, fmt.Errorf("create bill for %s: %w", st.ID, err)
		}
		created++
	}
	return created, nil
}

// SubmitInput is a student-initiated payment submission against a bill.
type SubmitInput struct {
	BillID       string
	StudentID    string
	Jumlah       int64
	Metode       string
	NamaPengirim string
	BankPengirim string
}

// Submit creates a pending payment and moves the bill to
// menunggu_konfirmasi. Conflicts if the bill is already settled, already
// awaiting confirmation, or already has a pending payment.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Payment, error) {
	if in.Metode == "" {
		in.Metode = "transfer"
	}
	var payment models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill models.Bill
		if err := tx.First(&bill, "id = ?", in.BillID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBillNotFound
			}
			return err
		}
		switch bill.Status {
		case models.BillLunas:
			return ErrAlreadyPaid
		case models.BillMenunggu:
			return ErrAlreadyAwaiting
		}

		var pending int64
		err := tx.Model(&models.Payment{}).
			Where("id_tagihan = ? AND status = ?", in.BillID, models.PaymentPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicatePending
		}

		// Conditional transition; a racing submission that already moved
		// the bill loses here.
		res := tx.Model(&models.Bill{}).
			Where("id = ? AND status = ?", in.BillID, models.BillBelum).
			Update("status", models.BillMenunggu)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAwaiting
		}

		payment = models.Payment{
			ID:           uuid.NewString(),
			IDTagihan:    in.BillID,
			IDSiswa:      in.StudentID,
			TanggalBayar: models.ISOTime(s.now()),
			Metode:       in.Metode,
			Jumlah:       in.Jumlah,
			Status:       models.PaymentPending,
			NamaPengirim: in.NamaPengirim,
			BankPengirim: in.BankPengirim,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Confirm is the admin transition of a bill to target. Confirming to lunas
// settles the bill's payment in the same transaction: an existing payment
// becomes diterima with a refreshed timestamp, otherwise a diterima payment
// over the full bill amount is created. Re-confirming a bill that already
// holds the target status is a no-op and does not re-send the notification.
// A settled bill never leaves lunas; confirming it to any other status is a
// conflict, keeping the bill consistent with its diterima payment.
func (s *Service) Confirm(ctx context.Context, billID string, target models.BillStatus) error {
	if !target.Valid() {
		return ErrUnknownStatus
	}

	var notifyStudent string
	var notifyBill models.Bill

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill models.Bill
		if err := tx.First(&bill, "id = ?", billID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBillNotFound
			}
			return err
		}
		if bill.Status == target {
			return nil // idempotent
		}
		if !bill.Status.CanTransition(target) {
			return ErrAlreadyPaid
		}

		res := tx.Model(&models.Bill{}).
			Where("id = ? AND status = ?", billID, bill.Status).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race; the other writer's outcome stands.
			return nil
		}

		if target != models.BillLunas {
			return nil
		}

		now := models.ISOTime(s.now())
		var payment models.Payment
		err := tx.Where("id_tagihan = ?", billID).
			Order("tanggal_bayar desc").
			First(&payment).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Direct confirmation with no prior submission: record the
			// payment over the full bill amount.
			payment = models.Payment{
				ID:           uuid.NewString(),
				IDTagihan:    billID,
				IDSiswa:      bill.IDSiswa,
				TanggalBayar: now,
				Metode:       "transfer",
				Jumlah:       bill.Jumlah,
				Status:       models.PaymentDiterima,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			err := tx.Model(&models.Payment{}).
				Where("id = ?", payment.ID).
				Updates(map[string]interface{}{
					"status":        models.PaymentDiterima,
					"tanggal_bayar": now,
				}).Error
			if err != nil {
				return err
			}
		}

		notifyBill = bill
		var student models.Student
		if err := tx.First(&student, "id = ?", bill.IDSiswa).Error; err == nil {
			notifyStudent = student.NoWA
		}
		return nil
	})
	if err != nil {
		return err
	}

	if notifyStudent != "" && s.notifier != nil {
		msg := fmt.Sprintf(
			"Pembayaran SPP %s %d sebesar Rp %s telah diterima. Terima kasih! - SMK MEKAR MURNI",
			notifyBill.Bulan, notifyBill.Tahun, groupRupiah(notifyBill.Jumlah))
		s.notifier.Send(notifyStudent, msg)
	}
	return nil
}

// AttachReceipt validates and stores a proof-of-transfer file for a
// payment, then moves the owning bill from belum to menunggu_konfirmasi.
// A settled bill is never reverted; attaching to one is a conflict.
// Ordering against Submit is not enforced: a receipt may arrive before or
// after the submission that created the payment.
func (s *Service) AttachReceipt(ctx context.Context, paymentID string, data []byte, contentType string) (*models.Payment, error) {
	ext, ok := receiptExts[normalizeContentType(contentType)]
	if !ok {
		return nil, ErrUnsupportedReceiptType
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		var bill models.Bill
		if err := tx.First(&bill, "id = ?", payment.IDTagihan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBillNotFound
			}
			return err
		}
		if bill.Status == models.BillLunas {
			return ErrBillSettled
		}

		path, err := s.receipts.Save(paymentID+ext, data)
		if err != nil {
			return fmt.Errorf("store receipt: %w", err)
		}
		if err := tx.Model(&payment).Update("bukti_path", path).Error; err != nil {
			return err
		}
		payment.BuktiPath = path

		// belum -> menunggu_konfirmasi; already-awaiting bills stay put.
		res := tx.Model(&models.Bill{}).
			Where("id = ? AND status = ?", bill.ID, models.BillBelum).
			Update("status", models.BillMenunggu)
		return res.Error
	})
	if err != nil {
		return nil, err
	}

	s.crossCheckAmount(ctx, &payment)
	return &payment, nil
}

// crossCheckAmount runs the OCR scanner over an image receipt and flags a
// mismatch between the printed amount and the recorded one. Best-effort:
// failures are logged and swallowed.
func (s *Service) crossCheckAmount(ctx context.Context, payment *models.Payment) {
	if s.scanner == nil || payment.BuktiPath == "" || strings.HasSuffix(payment.BuktiPath, ".pdf") {
		return
	}
	amt, err := s.scanner.ReadAmount(payment.BuktiPath)
	if err != nil || amt <= 0 {
		if err != nil {
			log.Printf("receipt scan %s: %v", payment.ID, err)
		}
		return
	}
	payment.OCRAmount = amt
	payment.AmountMismatch = payment.Jumlah != 0 && amt != payment.Jumlah
	err = s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"ocr_amount":      payment.OCRAmount,
			"amount_mismatch": payment.AmountMismatch,
		}).Error
	if err != nil {
		log.Printf("receipt scan %s: record result: %v", payment.ID, err)
	}
}

// FetchReceipt returns the stored receipt reference for a payment. Allowed
// for admins and for the student owning the payment.
func (s *Service) FetchReceipt(ctx context.Context, paymentID, requesterRole, requesterID string) (string, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPaymentNotFound
		}
		return "", err
	}
	if requesterRole != models.RoleAdmin && requesterID != payment.IDSiswa {
		return "", ErrForbidden
	}
	if payment.BuktiPath == "" {
		return "", ErrReceiptNotFound
	}
	return payment.BuktiPath, nil
}

// groupRupiah renders 500000 as "500.000" for notification texts.
func groupRupiah(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "." + strings.Join(parts, ".")
}

// normalizeContentType lowers the type and drops any parameters
// (e.g. "image/png; charset=binary").
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
