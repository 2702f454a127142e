package main

import (
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"sppapp/billing"
	"sppapp/models"
)

// billingStatus maps a billing error to the HTTP status the thin API layer
// reports. Unknown errors are 500s.
func billingStatus(err error) int {
	switch {
	case billing.IsNotFound(err):
		return http.StatusNotFound
	case billing.IsConflict(err):
		return http.StatusConflict
	case err == billing.ErrUnsupportedReceiptType, err == billing.ErrUnknownStatus:
		return http.StatusBadRequest
	case err == billing.ErrForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func abortBillingError(c *gin.Context, err error) {
	status := billingStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("billing: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func generateBillsHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req struct {
		Bulan string `json:"bulan" binding:"required"`
		Tahun int    `json:"tahun" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := svcBilling.Generate(c.Request.Context(), req.Bulan, req.Tahun)
	if err != nil {
		abortBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

func confirmBillHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := svcBilling.Confirm(c.Request.Context(), c.Param("id"), models.BillStatus(req.Status))
	if err != nil {
		abortBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status tagihan berhasil diupdate"})
}

func listBillsHandler(c *gin.Context) {
	q := db.Model(&models.Bill{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if idSiswa := c.Query("id_siswa"); idSiswa != "" {
		q = q.Where("id_siswa = ?", idSiswa)
	}
	var bills []models.Bill
	if err := q.Order("created_at desc").Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.IDSiswa)
	}
	students := summarizeStudents(uniqueStrings(ids))

	type billWithStudent struct {
		models.Bill
		Siswa *studentSummary `json:"siswa,omitempty"`
	}
	out := make([]billWithStudent, 0, len(bills))
	for _, b := range bills {
		row := billWithStudent{Bill: b}
		if s, ok := students[b.IDSiswa]; ok {
			row.Siswa = &s
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

func submitPaymentHandler(c *gin.Context) {
	var req struct {
		IDTagihan    string `json:"id_tagihan" binding:"required"`
		IDSiswa      string `json:"id_siswa"`
		Jumlah       int64  `json:"jumlah" binding:"required"`
		Metode       string `json:"metode"`
		NamaPengirim string `json:"nama_pengirim"`
		BankPengirim string `json:"bank_pengirim"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Students always submit for themselves; admins may submit on behalf.
	studentID := req.IDSiswa
	if c.GetString("role") == models.RoleSiswa {
		studentID = c.GetString("user_id")
	}
	payment, err := svcBilling.Submit(c.Request.Context(), billing.SubmitInput{
		BillID:       req.IDTagihan,
		StudentID:    studentID,
		Jumlah:       req.Jumlah,
		Metode:       req.Metode,
		NamaPengirim: req.NamaPengirim,
		BankPengirim: req.BankPengirim,
	})
	if err != nil {
		abortBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func listPaymentsHandler(c *gin.Context) {
	q := db.Model(&models.Payment{})
	if idSiswa := c.Query("id_siswa"); idSiswa != "" {
		q = q.Where("id_siswa = ?", idSiswa)
	}
	var payments []models.Payment
	if err := q.Order("tanggal_bayar desc").Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, enrichPayments(payments))
}

// paymentView is a payment listing row enriched with student and bill
// summaries for the admin tables.
type paymentView struct {
	models.Payment
	Siswa   *studentSummary `json:"siswa,omitempty"`
	Tagihan *billSummary    `json:"tagihan,omitempty"`
}

type billSummary struct {
	Bulan string `json:"bulan"`
	Tahun int    `json:"tahun"`
}

func enrichPayments(payments []models.Payment) []paymentView {
	studentIDs := make([]string, 0, len(payments))
	billIDs := make([]string, 0, len(payments))
	for _, p := range payments {
		studentIDs = append(studentIDs, p.IDSiswa)
		billIDs = append(billIDs, p.IDTagihan)
	}
	students := summarizeStudents(uniqueStrings(studentIDs))

	billByID := make(map[string]billSummary)
	var bills []models.Bill
	if len(billIDs) > 0 {
		if err := db.Where("id IN ?", uniqueStrings(billIDs)).Find(&bills).Error; err == nil {
			for _, b := range bills {
				billByID[b.ID] = billSummary{Bulan: b.Bulan, Tahun: b.Tahun}
			}
		}
	}

	out := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		row := paymentView{Payment: p}
		if s, ok := students[p.IDSiswa]; ok {
			row.Siswa = &s
		}
		if b, ok := billByID[p.IDTagihan]; ok {
			row.Tagihan = &b
		}
		out = append(out, row)
	}
	return out
}

func attachReceiptHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	payment, err := svcBilling.AttachReceipt(c.Request.Context(), c.Param("id"), data, file.Header.Get("Content-Type"))
	if err != nil {
		abortBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func fetchReceiptHandler(c *gin.Context) {
	ref, err := svcBilling.FetchReceipt(c.Request.Context(), c.Param("id"), c.GetString("role"), c.GetString("user_id"))
	if err != nil {
		abortBillingError(c, err)
		return
	}
	data, err := receiptFiles.Open(ref)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bukti pembayaran tidak ditemukan"})
		return
	}
	c.Data(http.StatusOK, receiptContentType(ref), data)
}

// receiptContentType maps a stored reference back to its declared type.
func receiptContentType(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	}
	return "image/jpeg"
}

func sendWhatsAppHandler(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req struct {
		Nomor string `json:"nomor" binding:"required"`
		Pesan string `json:"pesan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[MOCK WA] Pesan: %s | Kirim ke: %s", req.Pesan, req.Nomor)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "pesan WhatsApp berhasil dikirim (mock)"})
}
