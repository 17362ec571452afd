package session

import (
	"sync"
	"time"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
)

// Directory is the cached doctor list. The poller replaces it wholesale.
type Directory struct {
	mu        sync.RWMutex
	doctors   []clinicapi.Doctor
	updatedAt time.Time
}

func NewDirectory() *Directory {
	return &Directory{}
}

// Replace swaps in a fresh list.
func (d *Directory) Replace(doctors []clinicapi.Doctor, at time.Time) {
	cp := make([]clinicapi.Doctor, len(doctors))
	copy(cp, doctors)
	d.mu.Lock()
	d.doctors = cp
	d.updatedAt = at
	d.mu.Unlock()
}

// Clear empties the directory.
func (d *Directory) Clear() {
	d.mu.Lock()
	d.doctors = nil
	d.updatedAt = time.Time{}
	d.mu.Unlock()
}

func (d *Directory) All() []clinicapi.Doctor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := make([]clinicapi.Doctor, len(d.doctors))
	copy(cp, d.doctors)
	return cp
}

func (d *Directory) UpdatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updatedAt
}

// FilterBySpecialization returns the doctors practising specializationID.
func (d *Directory) FilterBySpecialization(specializationID int) []clinicapi.Doctor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []clinicapi.Doctor
	for _, doc := range d.doctors {
		if doc.Specialization.ID == specializationID {
			out = append(out, doc)
		}
	}
	return out
}

// Find looks a doctor up by id.
func (d *Directory) Find(id int) (clinicapi.Doctor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, doc := range d.doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return clinicapi.Doctor{}, false
}
