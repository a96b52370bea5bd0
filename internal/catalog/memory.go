package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// MemoryStore is an in-process Store. It only accepts the song columns it
// was built with, answering others the way MySQL does, so probing behaves
// as it would against a real table.
type MemoryStore struct {
	candidates []string
	accepted   map[string]bool

	mu          sync.Mutex
	column      string
	rows        map[int64]Record
	failInserts int
	inserts     int
}

// NewMemoryStore builds a store whose table has the given song columns. With
// none given it accepts the first default candidate.
func NewMemoryStore(columns ...string) *MemoryStore {
	if len(columns) == 0 {
		columns = DefaultSongColumns[:1]
	}

	accepted := make(map[string]bool, len(columns))
	for _, c := range columns {
		accepted[c] = true
	}

	return &MemoryStore{
		candidates:  DefaultSongColumns,
		accepted:    accepted,
		mu:          sync.Mutex{},
		column:      "",
		rows:        map[int64]Record{},
		failInserts: 0,
		inserts:     0,
	}
}

// FailNextInserts makes the next n Insert calls fail with a transient error.
func (s *MemoryStore) FailNextInserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failInserts = n
}

// Inserts counts successful inserts.
func (s *MemoryStore) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inserts
}

// Seed stores records directly, bypassing column checks.
func (s *MemoryStore) Seed(recs ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		s.rows[r.ID] = r
	}
}

func (s *MemoryStore) check(col string) error {
	if s.accepted[col] {
		return nil
	}

	return &mysql.MySQLError{ //nolint:exhaustruct // SQLState unused
		Number:  mysqlBadField,
		Message: fmt.Sprintf("Unknown column '%s' in 'where clause'", col),
	}
}

func (s *MemoryStore) ListBySong(_ context.Context, songID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := firstColumn(s.candidates, s.check)
	if err != nil {
		return nil, fmt.Errorf("failed to list audios for song %s: %w", songID, err)
	}

	s.column = col

	var out []Record
	for _, r := range s.rows {
		if r.SongID == songID {
			out = append(out, r)
		}
	}

	slices.SortFunc(out, func(a, b Record) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return r, nil
}

func (s *MemoryStore) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for id := range s.rows {
		maxID = max(maxID, id)
	}

	return maxID + 1, nil
}

func (s *MemoryStore) SongColumn(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.column != "" {
		return s.column, nil
	}

	col, err := firstColumn(s.candidates, s.check)
	if err != nil {
		return "", fmt.Errorf("failed to resolve song column: %w", err)
	}

	s.column = col

	return col, nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record, songColumn string) error {
	if songColumn == "" {
		col, err := s.SongColumn(ctx)
		if err != nil {
			return err
		}

		songColumn = col
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInserts > 0 {
		s.failInserts--
		return fmt.Errorf("failed to insert audio %d: connection refused", rec.ID)
	}

	if err := s.check(songColumn); err != nil {
		s.column = ""
		return fmt.Errorf("%w: %s: %w", ErrNoSongColumn, songColumn, err)
	}

	if _, ok := s.rows[rec.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, rec.ID)
	}

	if rec.Detail == "" {
		rec.Detail = DefaultDetail
	}

	s.rows[rec.ID] = rec
	s.inserts++

	return nil
}

func (s *MemoryStore) Rename(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	r.Name = name
	s.rows[id] = r

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	delete(s.rows, id)

	return nil
}
