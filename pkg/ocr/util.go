package ocr

import "strings"

// normalizeText collapses newlines, tabs and whitespace runs in OCR output.
func normalizeText(t string) string {
	t = strings.ReplaceAll(t, "\n", " ")
	t = strings.ReplaceAll(t, "\t", " ")
	return strings.Join(strings.Fields(t), " ")
}
