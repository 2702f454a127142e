// Package notify delivers payment confirmations to students. Sends are
// fire-and-forget: the caller gets no completion signal and failures never
// propagate into the bill/payment transition that triggered them.
package notify

import "log"

// Notifier is any service that can deliver a message to a contact handle.
type Notifier interface {
	Send(to, message string)
}

// WhatsAppMock logs outbound WhatsApp messages instead of delivering them.
// Stands in for a real gateway integration.
type WhatsAppMock struct{}

func NewWhatsAppMock() *WhatsAppMock { return &WhatsAppMock{} }

// Send logs the message on a separate goroutine so slow logging sinks can
// never block a confirmation.
func (w *WhatsAppMock) Send(to, message string) {
	go func() {
		log.Printf("[MOCK WA] Pesan: %s | Kirim ke: %s", message, to)
	}()
}

// Discard drops every message. Used in tests.
type Discard struct{}

func (Discard) Send(to, message string) {}
