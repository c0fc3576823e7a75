package scheduler

import (
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
)

// DefaultListLimit is used when ListFilter.Limit is not set
const DefaultListLimit = 20

// Cursor marks the last job of a page; the next page starts strictly after it
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Status  domain.JobStatus
	Kind    domain.JobKind
	ClaimID string
	After   *Cursor
	Limit   int
}

func (f ListFilter) matches(j *domain.Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Kind != "" && j.Kind != f.Kind {
		return false
	}
	if f.ClaimID != "" && j.ClaimID != f.ClaimID {
		return false
	}
	return true
}

// List returns job snapshots newest first
func (s *Scheduler) List(filter ListFilter) []domain.Job {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.Lock()
	matched := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.matches(j) {
			matched = append(matched, j)
		}
	}

	slices.SortFunc(matched, func(a, b *domain.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	out := make([]domain.Job, 0, min(limit, len(matched)))
	for _, j := range matched {
		if filter.After != nil && !olderThan(j, filter.After) {
			continue
		}
		out = append(out, j.Clone())
		if len(out) == limit {
			break
		}
	}
	s.mu.Unlock()

	return out
}

func olderThan(j *domain.Job, c *Cursor) bool {
	if !j.CreatedAt.Equal(c.CreatedAt) {
		return j.CreatedAt.Before(c.CreatedAt)
	}
	return j.ID < c.JobID
}
