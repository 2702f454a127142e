// Command receiptscan re-runs the amount OCR over stored receipt files and
// records mismatches between the printed transfer amount and the payment
// amount, so admins can review suspect submissions. Receipts are stored as
// <payment-id>.<ext>; the file name is the join key back to the payment.
//
// One-shot by default; --watch keeps scanning as new receipts land.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sppapp/models"
	"sppapp/pkg/ocr"
)

var (
	db      *gorm.DB
	verbose bool
	dryRun  bool
)

func main() {
	dirFlag := flag.String("dir", "uploads", "directory holding stored receipts")
	watch := flag.Bool("watch", false, "watch directory for new receipts")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	flag.BoolVar(&dryRun, "dry-run", false, "run OCR but skip DB writes")
	flag.BoolVar(&verbose, "verbose", false, "verbose per-file logging")
	flag.Parse()

	db = mustInitDBFromEnv()

	files := listReceiptFiles(*dirFlag)
	log.Printf("Scanning %d receipts (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, files, effectiveWorkers(*workers), nil)

	if *watch {
		if err := watchDirectory(*dirFlag, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// scannable receipt extensions; pdf receipts are skipped (no OCR pass).
func isImageReceipt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func listReceiptFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isImageReceipt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// processFile OCRs one receipt and records the cross-check on its payment.
func processFile(dir, name string) {
	paymentID := strings.TrimSuffix(name, filepath.Ext(name))

	var payment models.Payment
	if err := db.First(&payment, "id = ?", paymentID).Error; err != nil {
		logV("skip %s: no payment %s", name, paymentID)
		return
	}

	amt, err := ocr.ReadAmount(filepath.Join(dir, name))
	if err != nil {
		logV("OCR %s: %v", name, err)
		return
	}
	mismatch := payment.Jumlah != 0 && amt != payment.Jumlah
	logV("OCR %s amount=%d recorded=%d mismatch=%v", name, amt, payment.Jumlah, mismatch)
	if dryRun {
		return
	}
	err = db.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"ocr_amount":      amt,
			"amount_mismatch": mismatch,
		}).Error
	if err != nil {
		log.Printf("update payment %s: %v", payment.ID, err)
	}
}

// runWorkerPool processes the initial file list, then (when fileCh is
// non-nil) keeps draining watch events until the channel closes.
func runWorkerPool(dir string, files []string, workers int, fileCh <-chan string) {
	work := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range work {
				processFile(dir, name)
			}
		}()
	}
	for _, f := range files {
		work <- f
	}
	if fileCh != nil {
		for f := range fileCh {
			work <- f
		}
	}
	close(work)
	wg.Wait()
}

func watchDirectory(dir string, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// debounce so half-written uploads settle before OCR
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if isImageReceipt(name) {
						pending[name] = time.Now()
					}
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond {
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	runWorkerPool(dir, nil, workers, fileCh)
	return nil
}
