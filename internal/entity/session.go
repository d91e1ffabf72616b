package entity

import "maps"

const (
	SessionUserIDKey        = "_auth_user_id"
	SessionPendingUserIDKey = "unverified_user_id"
)

// Session is the server-side state behind one client session cookie.
// Values are flat string pairs; the session store decides how they are kept.
type Session struct {
	ID     string
	values map[string]string

	modified bool
	cycled   bool
	flushed  bool
}

func NewSession(id string, values map[string]string) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{ID: id, values: values}
}

func (s *Session) Get(key string) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}

func (s *Session) Set(key, value string) {
	if current, ok := s.values[key]; ok && current == value {
		return
	}
	s.values[key] = value
	s.modified = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.modified = true
}

// Flush drops every value; the store deletes the session and the cookie is cleared.
func (s *Session) Flush() {
	s.values = make(map[string]string)
	s.flushed = true
	s.modified = false
	s.cycled = false
}

// CycleKey asks the store to move the values under a fresh session id.
func (s *Session) CycleKey() {
	s.cycled = true
	s.modified = true
}

func (s *Session) Values() map[string]string {
	return maps.Clone(s.values)
}

func (s *Session) Modified() bool { return s.modified }

func (s *Session) Cycled() bool { return s.cycled }

func (s *Session) Flushed() bool { return s.flushed }

func (s *Session) IsEmpty() bool { return len(s.values) == 0 }
