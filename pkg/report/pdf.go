package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// BuildPDF renders the rows as an A4 table titled with the report period.
func BuildPDF(rows []Row, bulan string, tahun int) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Laporan Pembayaran SPP", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s %d - SMK MEKAR MURNI", bulan, tahun), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headers := []string{"No", "NIS", "Nama", "Kelas", "Jumlah", "Status"}
	widths := []float64{12, 28, 60, 24, 36, 30}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 58, 138)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(245, 245, 220)
	for i, r := range rows {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			r.NIS,
			r.Nama,
			r.Kelas,
			fmt.Sprintf("Rp %d", r.Jumlah),
			strings.ToUpper(r.Status),
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 7, c, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(251, 191, 36)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 8, "Total Lunas", "1", 0, "R", true, 0, "")
	pdf.CellFormat(widths[4]+widths[5], 8, fmt.Sprintf("Rp %d", TotalLunas(rows)), "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
