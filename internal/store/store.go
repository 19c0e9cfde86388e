package store

import (
	"sync"

	"github.com/loveindex/queryserver/internal/qserror"
)

// MaxID is the highest valid account id; slot 0 is the permanent
// empty sentinel.
const MaxID = 1_320_000

// Store is the dense account array plus the email-uniqueness set.
// Reads take no lock on the array: create and update install a whole
// new *Account through the single writer admitted by internal/mutate,
// so a reader that loaded an *Account before a concurrent update keeps
// the whole old record. Like-edge appends (internal/mutate) and the
// rebuild's re-sorts do change the adjacency slices of live records in
// place. Only the email set is locked, by muEmails.
type Store struct {
	accounts [MaxID + 1]*Account

	muEmails sync.RWMutex
	emails   map[string]int32 // email -> owning account id

	// Now is the reference instant accounts' hasPremiumNow was
	// derived against (the loader's options.txt scalar).
	Now int32
}

func Open(now int32) *Store {
	return &Store{
		emails: make(map[string]int32, 1<<20),
		Now:    now,
	}
}

// Get returns the account at id, or nil if the slot is empty or id is
// out of range.
func (s *Store) Get(id int32) *Account {
	if id <= 0 || id > MaxID {
		return nil
	}
	return s.accounts[id]
}

// MustGet returns the account at id or a NotFound qserror.
func (s *Store) MustGet(id int32) (*Account, error) {
	a := s.Get(id)
	if a.Empty() {
		return nil, qserror.NewNotFound("no such account")
	}
	return a, nil
}

// Put installs account at its own id. Callers (internal/mutate) are
// responsible for dictionary interning and derived-field computation
// before calling Put; Put itself performs no validation beyond the id
// range.
func (s *Store) Put(a *Account) error {
	if a.ID <= 0 || a.ID > MaxID {
		return qserror.NewBadRequest("account id out of range")
	}
	s.accounts[a.ID] = a
	return nil
}

// EmailOwner returns the id of the account currently holding email,
// or 0 if unused.
func (s *Store) EmailOwner(email string) int32 {
	s.muEmails.RLock()
	id := s.emails[email]
	s.muEmails.RUnlock()
	return id
}

// ClaimEmail records that id owns email; returns false if already
// claimed by a different, still-live id.
func (s *Store) ClaimEmail(email string, id int32) bool {
	s.muEmails.Lock()
	defer s.muEmails.Unlock()
	if owner, ok := s.emails[email]; ok && owner != id {
		return false
	}
	s.emails[email] = id
	return true
}

// ReleaseEmail removes the email->id claim, used when an update
// changes an account's email address.
func (s *Store) ReleaseEmail(email string) {
	s.muEmails.Lock()
	delete(s.emails, email)
	s.muEmails.Unlock()
}

// Len reports how many ids are currently populated (O(MaxID); used
// only for diagnostics/tests, never on a request path).
func (s *Store) Len() int {
	n := 0
	for id := 1; id <= MaxID; id++ {
		if s.accounts[id] != nil {
			n++
		}
	}
	return n
}
