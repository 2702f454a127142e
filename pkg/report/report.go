// Package report renders the monthly SPP bill report as Excel or PDF.
// It is a pure formatter over finalized bill state: callers assemble the
// rows, this package only lays them out.
package report

// Row is one bill line in the monthly report.
type Row struct {
	NIS    string
	Nama   string
	Kelas  string
	Bulan  string
	Tahun  int
	Jumlah int64
	Status string
}

// TotalLunas sums the amounts of settled rows.
func TotalLunas(rows []Row) int64 {
	var total int64
	for _, r := range rows {
		if r.Status == "lunas" {
			total += r.Jumlah
		}
	}
	return total
}
