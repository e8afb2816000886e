package api

import (
	"sync/atomic"

	"github.com/aouyang1/go-salinity/forecast"
)

// Holder shares the current forecast service between request handlers and the retraining
// schedule. A swapped in service serves every request that starts after the swap.
type Holder struct {
	current atomic.Pointer[forecast.Service]
}

// NewHolder returns a holder serving s, which may be nil until a bundle is trained
func NewHolder(s *forecast.Service) *Holder {
	h := &Holder{}
	if s != nil {
		h.current.Store(s)
	}
	return h
}

// Load returns the current service or nil
func (h *Holder) Load() *forecast.Service {
	return h.current.Load()
}

// Swap replaces the current service and returns the previous one
func (h *Holder) Swap(s *forecast.Service) *forecast.Service {
	return h.current.Swap(s)
}
