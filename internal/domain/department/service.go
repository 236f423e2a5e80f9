package department

import "github.com/relayloop/relayloop/internal/platform/apperr"

// Service answers from the seed table. Callers get copies, so the table
// cannot be mutated through it.
type Service struct {
	list  []Department
	byID  map[string]Department
	stats map[string]Stats
}

func NewService() *Service {
	s := &Service{
		byID:  make(map[string]Department, len(seed)),
		stats: make(map[string]Stats, len(seed)),
	}
	for _, row := range seed {
		s.list = append(s.list, row.Department)
		s.byID[row.ID] = row.Department
		s.stats[row.ID] = row.stats
	}
	return s
}

func (s *Service) List() []Department {
	out := make([]Department, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Service) Get(id string) (*Department, error) {
	d, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("department %s not found", id)
	}
	return &d, nil
}

// Stats returns the statistics row for id, or nil for an unknown id.
func (s *Service) Stats(id string) *Stats {
	st, ok := s.stats[id]
	if !ok {
		return nil
	}
	return &st
}

func (s *Service) AllStats() map[string]Stats {
	out := make(map[string]Stats, len(s.stats))
	for id, st := range s.stats {
		out[id] = st
	}
	return out
}
