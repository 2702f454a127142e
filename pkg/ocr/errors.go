package ocr

import "errors"

// ErrNoAmount indicates OCR ran but found nothing resembling an amount.
var ErrNoAmount = errors.New("no amount found in image")
