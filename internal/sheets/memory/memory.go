package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store keeps published tabs in memory.
type Store struct {
	mu    sync.Mutex
	order []string
	tabs  map[string][][]string
}

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// Publish replaces the tab content and returns a synthetic range reference.
func (s *Store) Publish(_ context.Context, sheet string, values [][]string) (string, error) {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return "", errors.New("empty sheet name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[sheet]; !ok {
		s.order = append(s.order, sheet)
	}
	cp := make([][]string, len(values))
	for i, row := range values {
		cp[i] = append([]string(nil), row...)
	}
	s.tabs[sheet] = cp
	return fmt.Sprintf("mem:%s!A1:D%d", sheet, len(values)), nil
}

// Sheets returns tab names in creation order.
func (s *Store) Sheets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Values returns the content of a tab.
func (s *Store) Values(sheet string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tabs[sheet]
	return v, ok
}
