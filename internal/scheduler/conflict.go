package scheduler

import (
	"sort"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// Job is the scheduling view of a job: who does it and when.
type Job struct {
	ID         string
	EmployeeID *string
	EventType  string
	Start      time.Time
	End        *time.Time
}

// effectiveEnd mirrors the grid's rule that jobs without an end last one hour.
func (j Job) effectiveEnd() time.Time {
	if j.End != nil {
		return *j.End
	}
	return j.Start.Add(calendar.DefaultDuration)
}

func (j Job) employee() string {
	if j.EmployeeID == nil {
		return ""
	}
	return *j.EmployeeID
}

// ConflictType describes the type of conflict detected between jobs.
type ConflictType string

const (
	// ConflictTypeEmployee indicates an employee is double-booked.
	ConflictTypeEmployee ConflictType = "employee"
	// ConflictTypeBlock indicates the job falls inside a blackout block.
	ConflictTypeBlock ConflictType = "block"
)

// Conflict details an overlapping job relation that callers can present to users.
type Conflict struct {
	WithJobID  string
	Type       ConflictType
	EmployeeID string
}

// DetectConflicts returns the conflicts between candidate and existing jobs,
// ordered by the other job's start. Overlap is half-open so back-to-back jobs
// never conflict. An unassigned block applies to every employee; an assigned
// block only to its employee. Unassigned candidates only conflict with blocks.
func DetectConflicts(existing []Job, candidate Job) []Conflict {
	type hit struct {
		conflict Conflict
		start    time.Time
	}
	var hits []hit

	candidateEmployee := candidate.employee()
	candidateEnd := candidate.effectiveEnd()

	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if !calendar.IntervalsOverlap(candidate.Start, candidateEnd, other.Start, other.effectiveEnd()) {
			continue
		}

		otherEmployee := other.employee()
		switch {
		case other.EventType == calendar.BlockType && candidate.EventType != calendar.BlockType:
			if otherEmployee != "" && otherEmployee != candidateEmployee {
				continue
			}
			hits = append(hits, hit{Conflict{WithJobID: other.ID, Type: ConflictTypeBlock, EmployeeID: otherEmployee}, other.Start})
		case candidate.EventType == calendar.BlockType || other.EventType == calendar.BlockType:
			continue
		case candidateEmployee != "" && candidateEmployee == otherEmployee:
			hits = append(hits, hit{Conflict{WithJobID: other.ID, Type: ConflictTypeEmployee, EmployeeID: otherEmployee}, other.Start})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start.Equal(hits[j].start) {
			return hits[i].conflict.WithJobID < hits[j].conflict.WithJobID
		}
		return hits[i].start.Before(hits[j].start)
	})

	conflicts := make([]Conflict, 0, len(hits))
	for _, h := range hits {
		conflicts = append(conflicts, h.conflict)
	}
	return conflicts
}
