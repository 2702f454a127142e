package main

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sppapp/models"
	"sppapp/pkg/report"
)

// dashboardStats are the headline numbers on the admin landing page.
// Aggregation matches on ISO-8601 string prefixes of tanggal_bayar, which
// is how the timestamps are persisted.
type dashboardStats struct {
	TotalSiswa     int64        `json:"total_siswa"`
	TotalTahunIni  int64        `json:"total_tahun_ini"`
	SiswaMenunggak int64        `json:"siswa_menunggak"`
	ChartData      []chartPoint `json:"chart_data"`
}

type chartPoint struct {
	Bulan     string `json:"bulan"` // YYYY-MM
	Pemasukan int64  `json:"pemasukan"`
}

func dashboardStatsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var stats dashboardStats
	if statsCache.Get(ctx, "dashboard:stats", &stats) {
		c.JSON(http.StatusOK, stats)
		return
	}

	if err := db.Model(&models.Student{}).Count(&stats.TotalSiswa).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var payments []models.Payment
	if err := db.Where("status = ?", models.PaymentDiterima).Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	yearPrefix := fmt.Sprintf("%d", time.Now().UTC().Year())
	monthly := map[string]int64{}
	for _, p := range payments {
		if strings.HasPrefix(p.TanggalBayar, yearPrefix) {
			stats.TotalTahunIni += p.Jumlah
		}
		if len(p.TanggalBayar) >= 7 {
			monthly[p.TanggalBayar[:7]] += p.Jumlah
		}
	}
	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 6 {
		keys = keys[len(keys)-6:]
	}
	stats.ChartData = make([]chartPoint, 0, len(keys))
	for _, k := range keys {
		stats.ChartData = append(stats.ChartData, chartPoint{Bulan: k, Pemasukan: monthly[k]})
	}

	var unpaid []models.Bill
	if err := db.Where("status = ?", models.BillBelum).Find(&unpaid).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	delinquent := map[string]struct{}{}
	for _, b := range unpaid {
		delinquent[b.IDSiswa] = struct{}{}
	}
	stats.SiswaMenunggak = int64(len(delinquent))

	statsCache.Set(ctx, "dashboard:stats", stats)
	c.JSON(http.StatusOK, stats)
}

func dailyReportHandler(c *gin.Context) {
	today := time.Now().UTC().Format("2006-01-02")
	var payments []models.Payment
	if err := db.Where("status = ?", models.PaymentDiterima).Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var daily []models.Payment
	var total int64
	for _, p := range payments {
		if strings.HasPrefix(p.TanggalBayar, today) {
			daily = append(daily, p)
			total += p.Jumlah
		}
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "payments": enrichPayments(daily)})
}

func monthlyReportHandler(c *gin.Context) {
	bulan := c.Query("bulan")
	tahun, err := strconv.Atoi(c.Query("tahun"))
	if bulan == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bulan dan tahun wajib diisi"})
		return
	}

	var bills []models.Bill
	if err := db.Where("bulan = ? AND tahun = ?", bulan, tahun).Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var lunas int64
	for _, b := range bills {
		if b.Status == models.BillLunas {
			lunas++
		}
	}

	monthKey := models.MonthKey(bulan, tahun)
	var payments []models.Payment
	if err := db.Where("status = ?", models.PaymentDiterima).Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var monthly []models.Payment
	var total int64
	for _, p := range payments {
		if strings.HasPrefix(p.TanggalBayar, monthKey) {
			monthly = append(monthly, p)
			total += p.Jumlah
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"bulan":             bulan,
		"tahun":             tahun,
		"total_pemasukan":   total,
		"total_tagihan":     len(bills),
		"total_lunas":       lunas,
		"total_belum_lunas": int64(len(bills)) - lunas,
		"payments":          enrichPayments(monthly),
	})
}

// monthlyReportRows assembles the export rows for one period, enriched with
// the student registry.
func monthlyReportRows(bulan string, tahun int) ([]report.Row, error) {
	var bills []models.Bill
	if err := db.Where("bulan = ? AND tahun = ?", bulan, tahun).Find(&bills).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.IDSiswa)
	}
	students := summarizeStudents(uniqueStrings(ids))

	rows := make([]report.Row, 0, len(bills))
	for _, b := range bills {
		s, ok := students[b.IDSiswa]
		if !ok {
			continue
		}
		rows = append(rows, report.Row{
			NIS:    s.NIS,
			Nama:   s.Nama,
			Kelas:  s.Kelas,
			Bulan:  b.Bulan,
			Tahun:  b.Tahun,
			Jumlah: b.Jumlah,
			Status: string(b.Status),
		})
	}
	return rows, nil
}

func exportExcelHandler(c *gin.Context) {
	bulan := c.Query("bulan")
	tahun, err := strconv.Atoi(c.Query("tahun"))
	if bulan == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bulan dan tahun wajib diisi"})
		return
	}
	rows, err := monthlyReportRows(bulan, tahun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	data, err := report.BuildExcel(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=laporan_%s_%d.xlsx", bulan, tahun))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func exportPDFHandler(c *gin.Context) {
	bulan := c.Query("bulan")
	tahun, err := strconv.Atoi(c.Query("tahun"))
	if bulan == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bulan dan tahun wajib diisi"})
		return
	}
	rows, err := monthlyReportRows(bulan, tahun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	data, err := report.BuildPDF(rows, bulan, tahun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=laporan_%s_%d.pdf", bulan, tahun))
	c.Data(http.StatusOK, "application/pdf", data)
}

// --- student portal ---

// requireSelfOrStaff rejects students reading another student's records.
func requireSelfOrStaff(c *gin.Context, studentID string) bool {
	role := c.GetString("role")
	if role == models.RoleSiswa && c.GetString("user_id") != studentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "tidak berhak mengakses data siswa lain"})
		c.Abort()
		return false
	}
	return true
}

func studentProfileHandler(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrStaff(c, id) {
		return
	}
	var student models.Student
	if err := db.First(&student, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "siswa tidak ditemukan"})
		return
	}
	c.JSON(http.StatusOK, student)
}

func studentBillsHandler(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrStaff(c, id) {
		return
	}
	var bills []models.Bill
	if err := db.Where("id_siswa = ?", id).Order("created_at desc").Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, bills)
}

func studentPaymentsHandler(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrStaff(c, id) {
		return
	}
	var payments []models.Payment
	if err := db.Where("id_siswa = ?", id).Order("tanggal_bayar desc").Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, enrichPayments(payments))
}
