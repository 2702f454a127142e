// Package ocr reads the transfer amount printed on a receipt image, to
// cross-check student-submitted payments against the bill. It does light
// preprocessing (grayscale + upscale) and a single Tesseract pass with a
// digit-heavy whitelist, then picks the most plausible amount-looking
// substring.
package ocr

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

var amountPatterns = []*regexp.Regexp{
	// labeled: "jumlah transfer: Rp 500.000", "total bayar 500000"
	regexp.MustCompile(`(?i)(?:jumlah(?:\s+transfer)?|total(?:\s+bayar)?|total pembayaran|transfer|nominal)[:\s]*(?:Rp|IDR)?[\s]*([0-9][0-9.,]*)`),
	// currency-marked: "Rp500.000", "IDR 500000"
	regexp.MustCompile(`(?i)(?:Rp|IDR)[\s]*([0-9][0-9.,]*)`),
	// grouped digits: "500.000", "1,250,000"
	regexp.MustCompile(`([0-9]{1,3}(?:[.,][0-9]{3})+)`),
	// plain digit runs of amount-ish length
	regexp.MustCompile(`([0-9]{5,})`),
}

// ReadAmount OCRs the image at path and returns the amount in whole rupiah.
// Returns ErrNoAmount when the text holds nothing that looks like one.
func ReadAmount(path string) (int64, error) {
	text, err := imageText(path)
	if err != nil {
		return 0, err
	}
	matches := findMatches(text)
	if len(matches) == 0 {
		return 0, ErrNoAmount
	}
	best, ok := bestMatch(matches)
	if !ok {
		return 0, ErrNoAmount
	}
	amt, err := ParseAmountFromMatch(best)
	if err != nil {
		return 0, ErrNoAmount
	}
	return amt, nil
}

// imageText preprocesses the image and runs Tesseract over it.
func imageText(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < 800 {
		gray = imaging.Resize(gray, 0, 1200, imaging.Lanczos)
	}

	tmp := path
	if f, err := os.CreateTemp("", "receipt-*.png"); err == nil {
		tmp = f.Name()
		_ = f.Close()
		if err := imaging.Save(gray, tmp); err != nil {
			tmp = path
		} else {
			defer os.Remove(tmp)
		}
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetWhitelist("0123456789RpIDRidr.,:()/- ")
	if err := client.SetImage(tmp); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return normalizeText(text), nil
}

// findMatches collects plausible amount substrings in pattern-priority
// order, keeping currency context so scoring can prefer marked values.
func findMatches(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			s := strings.TrimSpace(m[1])
			if s == "" {
				continue
			}
			full := strings.ToLower(m[0])
			if (strings.Contains(full, "rp") || strings.Contains(full, "idr")) &&
				!strings.Contains(strings.ToLower(s), "rp") {
				s = "Rp" + s
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			if isPlausibleAmount(s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// bestMatch prefers currency-marked matches, then grouped ones, then the
// first plain run found.
func bestMatch(matches []string) (string, bool) {
	var grouped string
	for _, m := range matches {
		low := strings.ToLower(m)
		if strings.Contains(low, "rp") || strings.Contains(low, "idr") {
			return m, true
		}
		if grouped == "" && (strings.Contains(m, ".") || strings.Contains(m, ",")) {
			grouped = m
		}
	}
	if grouped != "" {
		return grouped, true
	}
	if len(matches) > 0 {
		return matches[0], true
	}
	return "", false
}
