package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an import job
type JobStatus string

const (
	JobStatusSearching JobStatus = "searching"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true if no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only searching -> completed and searching -> failed exist.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return s == JobStatusSearching && next.IsTerminal()
}

// ImportJob is one asynchronous search-and-persist run against a brand's network
type ImportJob struct {
	ID            string     `json:"id"`
	BrandID       string     `json:"brandId"`
	Keywords      *string    `json:"keywords,omitempty"`
	Limit         int        `json:"limit"`
	Status        JobStatus  `json:"status"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
	ProductsFound int        `json:"productsFound"`
	Inserted      int        `json:"inserted"`
	Updated       int        `json:"updated"`
	Skipped       int        `json:"skipped"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// NewImportJob creates a job in the searching state
func NewImportJob(brandID, keywords string, limit int, now time.Time) (*ImportJob, error) {
	if strings.TrimSpace(brandID) == "" || limit <= 0 {
		return nil, ErrInvalidRequest
	}
	job := &ImportJob{
		ID:        uuid.NewString(),
		BrandID:   brandID,
		Limit:     limit,
		Status:    JobStatusSearching,
		CreatedAt: now,
	}
	if kw := strings.TrimSpace(keywords); kw != "" {
		job.Keywords = &kw
	}
	return job, nil
}

// KeywordList splits the job keywords into phrases
func (j *ImportJob) KeywordList() []string {
	if j.Keywords == nil {
		return nil
	}
	return ParseKeywords(*j.Keywords)
}

// Complete moves the job to completed and records the reconciliation counts
func (j *ImportJob) Complete(found, skipped int, result ReconcileResult, now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return ErrInvalidTransition
	}
	j.Status = JobStatusCompleted
	j.ProductsFound = found
	j.Skipped = skipped
	j.Inserted = result.Inserted
	j.Updated = result.Updated
	j.CompletedAt = &now
	return nil
}

// Fail moves the job to failed with a human-readable message
func (j *ImportJob) Fail(message string, now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusFailed) {
		return ErrInvalidTransition
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = &message
	j.CompletedAt = &now
	return nil
}

// ParseKeywords splits a comma-separated keyword string into trimmed, non-empty phrases
func ParseKeywords(s string) []string {
	var phrases []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

// ReconcileResult counts the outcome of matching candidates against stored rows
type ReconcileResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}
