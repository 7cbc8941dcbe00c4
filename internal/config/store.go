package config

import (
	"errors"
	"sync/atomic"
)

// ErrNoSnapshot — в Store ещё не загружен ни один снимок.
var ErrNoSnapshot = errors.New("no configuration snapshot loaded")

// Store — держатель текущего снимка конфигурации.
//
// Замена снимка атомарна: подменяется указатель целиком, никакой
// мутации таблиц на месте. Идущие pipeline runs продолжают видеть
// снимок, с которым стартовали.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore создаёт Store с начальным снимком (может быть nil).
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Current возвращает текущий снимок.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Swap атомарно заменяет текущий снимок.
func (s *Store) Swap(snap *Snapshot) {
	s.current.Store(snap)
}
