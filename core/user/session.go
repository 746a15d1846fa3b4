package user

import (
	"errors"
	"sync"

	"github.com/trezcool/classroom/core"
)

// Session holds the signed in User. It is created once per app session and passed
// explicitly to the components that act on the user's behalf.
type Session struct {
	mu  sync.RWMutex
	usr *User
}

func NewSession() *Session {
	return &Session{}
}

// NewSessionFor returns a Session already established for usr.
func NewSessionFor(usr User) (*Session, error) {
	s := NewSession()
	if err := s.Establish(usr); err != nil {
		return nil, err
	}
	return s, nil
}

// Establish signs usr in, replacing any previous user.
func (s *Session) Establish(usr User) error {
	usr.ID = core.CleanString(usr.ID)
	var flds []core.FieldError
	if usr.ID == "" {
		flds = append(flds, core.FieldError{Field: "id", Error: "this field is required"})
	}
	if usr.Role == nil {
		flds = append(flds, core.FieldError{Field: "role", Error: "this field is required"})
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid session user"), flds...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usr = &usr
	return nil
}

// Clear signs the current user out.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usr = nil
}

// Current returns the signed in User, if any.
func (s *Session) Current() (User, bool) {
	if s == nil {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.usr == nil {
		return User{}, false
	}
	return *s.usr, true
}

// MustCurrent returns the signed in User or core.ErrNoSession.
func (s *Session) MustCurrent() (User, error) {
	usr, ok := s.Current()
	if !ok {
		return User{}, core.ErrNoSession
	}
	return usr, nil
}
