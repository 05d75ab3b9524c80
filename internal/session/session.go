// Package session keeps each visitor's pair of forms in memory.
package session

import (
	"sync"
	"time"

	"github.com/Zachkp/portfolio/internal/forms"
	"github.com/google/uuid"
)

// Forms is one visitor's contact and inquiry form. The two never share state.
type Forms struct {
	Contact *forms.ContactForm
	Inquiry *forms.InquiryForm

	lastSeen time.Time
}

// Factory builds a fresh pair of forms for a new visitor.
type Factory func() *Forms

// NewFactory wires both forms to the same sender with per-form endpoints and options.
func NewFactory(sender forms.Sender, contactEndpoint, inquiryEndpoint string, contactOpts, inquiryOpts []forms.Option) Factory {
	return func() *Forms {
		return &Forms{
			Contact: forms.NewContactForm(sender, contactEndpoint, contactOpts...),
			Inquiry: forms.NewInquiryForm(sender, inquiryEndpoint, inquiryOpts...),
		}
	}
}

// Store maps visitor ids to their forms.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Forms
	ttl      time.Duration
	newForms Factory
	now      func() time.Time
}

func NewStore(ttl time.Duration, factory Factory) *Store {
	return &Store{
		sessions: make(map[string]*Forms),
		ttl:      ttl,
		newForms: factory,
		now:      time.Now,
	}
}

// NewID returns a fresh visitor id.
func NewID() string { return uuid.NewString() }

// Get returns the forms for id, creating them when the id is unknown or
// malformed. The returned id is the one the caller should keep using.
func (s *Store) Get(id string) (string, *Forms) {
	if _, err := uuid.Parse(id); err != nil {
		id = NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.sessions[id]
	if !ok {
		f = s.newForms()
		s.sessions[id] = f
	}
	f.lastSeen = s.now()
	return id, f
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*Forms

	s.mu.Lock()
	for id, f := range s.sessions {
		if f.lastSeen.Before(cutoff) {
			expired = append(expired, f)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, f := range expired {
		f.Contact.Close()
		f.Inquiry.Close()
	}
	return len(expired)
}

// Close stops every scheduled auto-clear and forgets all sessions.
func (s *Store) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Forms)
	s.mu.Unlock()

	for _, f := range all {
		f.Contact.Close()
		f.Inquiry.Close()
	}
}
