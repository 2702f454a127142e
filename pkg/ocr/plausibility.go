package ocr

import "strings"

// isPlausibleAmount decides whether a numeric substring likely represents
// money rather than a phone number, RRN or transaction id. Conservative:
// currency hints or grouping separators qualify; long bare digit runs and
// leading zeros do not.
func isPlausibleAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	low := strings.ToLower(s)
	if strings.Contains(low, "rp") || strings.Contains(low, "idr") {
		return true
	}
	if strings.Contains(s, ".") || strings.Contains(s, ",") {
		d := onlyDigits(s)
		return len(d) >= 3 && d[0] != '0'
	}
	d := onlyDigits(s)
	if len(d) < 2 || len(d) > 7 || d[0] == '0' {
		return false
	}
	// Mid-size bare runs are usually ids unless they sit on a round
	// tuition-like boundary.
	if len(d) >= 5 && !(strings.HasSuffix(d, "000") || strings.HasSuffix(d, "500")) {
		return false
	}
	return true
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
