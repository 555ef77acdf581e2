package store

import (
	"strings"
	"sync"

	"studiobook/internal/models"
)

// SessionCache holds bookings created while the remote service was
// unavailable. It lives for the process only. Entries are appended in order
// and only their status is ever changed.
type SessionCache struct {
	mu       sync.RWMutex
	bookings []models.Booking
}

func NewSessionCache() *SessionCache {
	return &SessionCache{}
}

func (c *SessionCache) Append(b models.Booking) {
	c.mu.Lock()
	c.bookings = append(c.bookings, b)
	c.mu.Unlock()
}

// Snapshot returns a copy of the cached bookings in insertion order.
func (c *SessionCache) Snapshot() []models.Booking {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Booking, len(c.bookings))
	copy(out, c.bookings)
	return out
}

func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bookings)
}

// UpdateStatus changes the status of the booking with id in place. It reports
// false when no such booking is cached.
func (c *SessionCache) UpdateStatus(id, status string) (models.Booking, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.bookings {
		if c.bookings[i].ID != id {
			continue
		}
		if !models.CanTransition(c.bookings[i].Status, status) {
			return c.bookings[i], true, ErrInvalidTransition
		}
		c.bookings[i].Status = status
		return c.bookings[i], true, nil
	}
	return models.Booking{}, false, nil
}

// Find returns the first cached booking whose ID or email equals term,
// compared trimmed and case-insensitively.
func (c *SessionCache) Find(term string) (models.Booking, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matchFirst(c.bookings, term)
}

// Reset empties the cache.
func (c *SessionCache) Reset() {
	c.mu.Lock()
	c.bookings = nil
	c.mu.Unlock()
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func matchFirst(bookings []models.Booking, term string) (models.Booking, bool) {
	term = normalizeTerm(term)
	if term == "" {
		return models.Booking{}, false
	}
	for _, b := range bookings {
		if normalizeTerm(b.ID) == term || normalizeTerm(b.Email) == term {
			return b, true
		}
	}
	return models.Booking{}, false
}
