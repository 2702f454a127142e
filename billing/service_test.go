package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sppapp/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&models.Student{}, &models.Class{}, &models.Bill{}, &models.Payment{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// memStore keeps receipts in memory for the tests.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (m *memStore) Save(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return "mem://" + name, nil
}

// spyNotifier records sent messages.
type spyNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *spyNotifier) Send(to, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to+": "+message)
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *spyNotifier) {
	t.Helper()
	db := openTestDB(t)
	notifier := &spyNotifier{}
	svc := NewService(db, newMemStore(), notifier, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return svc, db, notifier
}

func seedStudent(t *testing.T, db *gorm.DB, kelas string) models.Student {
	t.Helper()
	s := models.Student{
		ID:             uuid.NewString(),
		NIS:            uuid.NewString()[:8],
		Nama:           "Budi Santoso",
		Kelas:          kelas,
		NoWA:           "+6281234567890",
		Username:       uuid.NewString()[:8],
		HashedPassword: []byte("x"),
		CreatedAt:      models.ISOTime(time.Now()),
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return s
}

func seedClass(t *testing.T, db *gorm.DB, nama string, nominal int64) {
	t.Helper()
	c := models.Class{
		ID:         uuid.NewString(),
		NamaKelas:  nama,
		NominalSPP: nominal,
		CreatedAt:  models.ISOTime(time.Now()),
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed class: %v", err)
	}
}

func seedBill(t *testing.T, db *gorm.DB, studentID string, status models.BillStatus) models.Bill {
	t.Helper()
	b := models.Bill{
		ID:        uuid.NewString(),
		IDSiswa:   studentID,
		Bulan:     "Januari",
		Tahun:     2025,
		Jumlah:    500000,
		Status:    status,
		CreatedAt: models.ISOTime(time.Now()),
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return b
}

func TestGenerateIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedClass(t, db, "X-1", 500000)
	seedClass(t, db, "XI-1", 550000)
	s1 := seedStudent(t, db, "X-1")
	s2 := seedStudent(t, db, "XI-1")

	created, err := svc.Generate(context.Background(), "Januari", 2025)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	// Second run for the same period creates nothing.
	created, err = svc.Generate(context.Background(), "Januari", 2025)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created = %d, want 0", created)
	}

	// Amounts come from the class table.
	var b1, b2 models.Bill
	if err := db.First(&b1, "id_siswa = ?", s1.ID).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	if err := db.First(&b2, "id_siswa = ?", s2.ID).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	if b1.Jumlah != 500000 || b2.Jumlah != 550000 {
		t.Fatalf("amounts = %d, %d; want 500000, 550000", b1.Jumlah, b2.Jumlah)
	}
	if b1.Status != models.BillBelum {
		t.Fatalf("status = %q, want %q", b1.Status, models.BillBelum)
	}
}

func TestGenerateUnknownClassFallsBack(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "KELAS-HILANG")

	if _, err := svc.Generate(context.Background(), "Februari", 2025); err != nil {
		t.Fatalf("generate: %v", err)
	}
	var b models.Bill
	if err := db.First(&b, "id_siswa = ?", s.ID).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	if b.Jumlah != models.DefaultNominalSPP {
		t.Fatalf("jumlah = %d, want %d", b.Jumlah, models.DefaultNominalSPP)
	}
}

func TestSubmitMovesBillToMenunggu(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	payment, err := svc.Submit(context.Background(), SubmitInput{
		BillID:    b.ID,
		StudentID: s.ID,
		Jumlah:    500000,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Fatalf("payment status = %q, want %q", payment.Status, models.PaymentPending)
	}
	if payment.Metode != "transfer" {
		t.Fatalf("metode = %q, want default transfer", payment.Metode)
	}

	var reloaded models.Bill
	if err := db.First(&reloaded, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if reloaded.Status != models.BillMenunggu {
		t.Fatalf("bill status = %q, want %q", reloaded.Status, models.BillMenunggu)
	}

	// A second submission against the awaiting bill is a conflict.
	_, err = svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if !errors.Is(err, ErrAlreadyAwaiting) {
		t.Fatalf("second submit err = %v, want ErrAlreadyAwaiting", err)
	}

	var pending int64
	db.Model(&models.Payment{}).
		Where("id_tagihan = ? AND status = ?", b.ID, models.PaymentPending).
		Count(&pending)
	if pending != 1 {
		t.Fatalf("pending payments = %d, want 1", pending)
	}
}

func TestSubmitRejectsSettledAndMissing(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")
	paid := seedBill(t, db, s.ID, models.BillLunas)

	_, err := svc.Submit(context.Background(), SubmitInput{BillID: paid.ID, StudentID: s.ID, Jumlah: 500000})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("submit on lunas err = %v, want ErrAlreadyPaid", err)
	}
	_, err = svc.Submit(context.Background(), SubmitInput{BillID: "nope", StudentID: s.ID, Jumlah: 500000})
	if !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("submit missing err = %v, want ErrBillNotFound", err)
	}
}

func TestConfirmLunasSettlesPendingPayment(t *testing.T) {
	svc, db, notifier := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	payment, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Confirm(context.Background(), b.ID, models.BillLunas); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloaded.Status != models.PaymentDiterima {
		t.Fatalf("payment status = %q, want %q", reloaded.Status, models.PaymentDiterima)
	}

	var bill models.Bill
	if err := db.First(&bill, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.Status != models.BillLunas {
		t.Fatalf("bill status = %q, want %q", bill.Status, models.BillLunas)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}

	// Re-confirming is a no-op: no extra payment, no extra notification.
	if err := svc.Confirm(context.Background(), b.ID, models.BillLunas); err != nil {
		t.Fatalf("re-confirm: %v", err)
	}
	var count int64
	db.Model(&models.Payment{}).Where("id_tagihan = ?", b.ID).Count(&count)
	if count != 1 {
		t.Fatalf("payments after re-confirm = %d, want 1", count)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications after re-confirm = %d, want 1", notifier.count())
	}
}

func TestConfirmLunasWithoutSubmissionCreatesPayment(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	if err := svc.Confirm(context.Background(), b.ID, models.BillLunas); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var payment models.Payment
	if err := db.First(&payment, "id_tagihan = ?", b.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != models.PaymentDiterima {
		t.Fatalf("status = %q, want %q", payment.Status, models.PaymentDiterima)
	}
	if payment.Jumlah != b.Jumlah {
		t.Fatalf("jumlah = %d, want bill amount %d", payment.Jumlah, b.Jumlah)
	}
	if payment.IDSiswa != s.ID {
		t.Fatalf("id_siswa = %q, want %q", payment.IDSiswa, s.ID)
	}
}

func TestConfirmResetToBelum(t *testing.T) {
	svc, db, notifier := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	if _, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Confirm(context.Background(), b.ID, models.BillBelum); err != nil {
		t.Fatalf("reset: %v", err)
	}

	var bill models.Bill
	if err := db.First(&bill, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.Status != models.BillBelum {
		t.Fatalf("bill status = %q, want %q", bill.Status, models.BillBelum)
	}
	// Resetting does not touch the payment and sends nothing.
	var payment models.Payment
	if err := db.First(&payment, "id_tagihan = ?", b.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Fatalf("payment status = %q, want %q", payment.Status, models.PaymentPending)
	}
	if notifier.count() != 0 {
		t.Fatalf("notifications = %d, want 0", notifier.count())
	}

	// The reset bill still holds its pending payment, so a new submission
	// is rejected rather than stacking a second pending row.
	_, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("resubmit err = %v, want ErrDuplicatePending", err)
	}
	var pending int64
	db.Model(&models.Payment{}).
		Where("id_tagihan = ? AND status = ?", b.ID, models.PaymentPending).
		Count(&pending)
	if pending != 1 {
		t.Fatalf("pending payments = %d, want 1", pending)
	}
}

func TestConfirmCannotLeaveLunas(t *testing.T) {
	svc, db, notifier := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	payment, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Confirm(context.Background(), b.ID, models.BillLunas); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	for _, target := range []models.BillStatus{models.BillBelum, models.BillMenunggu} {
		if err := svc.Confirm(context.Background(), b.ID, target); !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("confirm lunas -> %q err = %v, want ErrAlreadyPaid", target, err)
		}
	}

	// Bill and payment stay settled together.
	var bill models.Bill
	if err := db.First(&bill, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.Status != models.BillLunas {
		t.Fatalf("bill status = %q, want %q", bill.Status, models.BillLunas)
	}
	var reloaded models.Payment
	if err := db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloaded.Status != models.PaymentDiterima {
		t.Fatalf("payment status = %q, want %q", reloaded.Status, models.PaymentDiterima)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
}

func TestConfirmRejectsUnknownStatusAndMissingBill(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.Confirm(context.Background(), "whatever", models.BillStatus("paid")); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("err = %v, want ErrUnknownStatus", err)
	}
	if err := svc.Confirm(context.Background(), "missing", models.BillLunas); !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("err = %v, want ErrBillNotFound", err)
	}
}

func TestAttachReceiptMovesBillAndStoresFile(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	payment, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Submit already moved the bill; reset it to exercise the attach path
	// where the receipt arrives first.
	if err := db.Model(&models.Bill{}).Where("id = ?", b.ID).Update("status", models.BillBelum).Error; err != nil {
		t.Fatalf("reset bill: %v", err)
	}

	updated, err := svc.AttachReceipt(context.Background(), payment.ID, []byte("%PDF-1.4 dummy"), "application/pdf")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if updated.BuktiPath == "" {
		t.Fatal("bukti_path not set")
	}

	var bill models.Bill
	if err := db.First(&bill, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.Status != models.BillMenunggu {
		t.Fatalf("bill status = %q, want %q", bill.Status, models.BillMenunggu)
	}
}

func TestAttachReceiptRejections(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")

	_, err := svc.AttachReceipt(context.Background(), "missing", []byte("x"), "image/png")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}

	b := seedBill(t, db, s.ID, models.BillBelum)
	payment, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = svc.AttachReceipt(context.Background(), payment.ID, []byte("x"), "text/plain")
	if !errors.Is(err, ErrUnsupportedReceiptType) {
		t.Fatalf("err = %v, want ErrUnsupportedReceiptType", err)
	}

	// A settled bill never accepts a receipt.
	if err := svc.Confirm(context.Background(), b.ID, models.BillLunas); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err = svc.AttachReceipt(context.Background(), payment.ID, []byte("x"), "image/png")
	if !errors.Is(err, ErrBillSettled) {
		t.Fatalf("err = %v, want ErrBillSettled", err)
	}
}

func TestFetchReceiptAuthorization(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := seedStudent(t, db, "X-1")
	b := seedBill(t, db, s.ID, models.BillBelum)

	payment, err := svc.Submit(context.Background(), SubmitInput{BillID: b.ID, StudentID: s.ID, Jumlah: 500000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// No receipt attached yet.
	_, err = svc.FetchReceipt(context.Background(), payment.ID, models.RoleAdmin, "admin-1")
	if !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("err = %v, want ErrReceiptNotFound", err)
	}

	if _, err := svc.AttachReceipt(context.Background(), payment.ID, []byte("png"), "image/png; charset=binary"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := svc.FetchReceipt(context.Background(), payment.ID, models.RoleAdmin, "admin-1"); err != nil {
		t.Fatalf("admin fetch: %v", err)
	}
	if _, err := svc.FetchReceipt(context.Background(), payment.ID, models.RoleSiswa, s.ID); err != nil {
		t.Fatalf("owner fetch: %v", err)
	}
	_, err = svc.FetchReceipt(context.Background(), payment.ID, models.RoleSiswa, "other-student")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestGroupRupiah(t *testing.T) {
	cases := map[int64]string{
		500:     "500",
		500000:  "500.000",
		1250000: "1.250.000",
	}
	for n, want := range cases {
		if got := groupRupiah(n); got != want {
			t.Errorf("groupRupiah(%d) = %q, want %q", n, got, want)
		}
	}
}
