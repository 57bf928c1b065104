package questionbank

import (
	"context"
	"sync/atomic"
)

// Holder publishes the current bank to concurrent readers.
type Holder struct {
	bank atomic.Pointer[Bank]
}

// Get returns the current bank, or nil when none is loaded.
func (h *Holder) Get() *Bank {
	return h.bank.Load()
}

// Set replaces the current bank.
func (h *Holder) Set(b *Bank) {
	h.bank.Store(b)
}

// Refresh loads a fresh bank and installs it. The previous bank is kept on error.
func (h *Holder) Refresh(ctx context.Context, l *Loader) error {
	questions, err := l.Load(ctx)
	if err != nil {
		return err
	}
	h.Set(NewBank(questions))
	return nil
}
