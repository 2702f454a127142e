package models

import (
	"fmt"
	"time"
)

// monthNumbers maps the Indonesian month labels used on bills to their
// calendar number, for building YYYY-MM keys against ISO timestamps.
var monthNumbers = map[string]int{
	"Januari":   1,
	"Februari":  2,
	"Maret":     3,
	"April":     4,
	"Mei":       5,
	"Juni":      6,
	"Juli":      7,
	"Agustus":   8,
	"September": 9,
	"Oktober":   10,
	"November":  11,
	"Desember":  12,
}

// MonthKey returns the "YYYY-MM" prefix for a billing period. Unknown month
// labels fall back to January, mirroring the legacy reporting behavior.
func MonthKey(bulan string, tahun int) string {
	n, ok := monthNumbers[bulan]
	if !ok {
		n = 1
	}
	return fmt.Sprintf("%d-%02d", tahun, n)
}

// ISOTime renders t the way domain timestamps are persisted: an ISO-8601
// string in UTC. All reporting date arithmetic is prefix matching against
// this format, so it must stay stable.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
