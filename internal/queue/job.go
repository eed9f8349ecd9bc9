package queue

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-docs/internal/models"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeGenerateContent fills a freshly created file with generated content
	JobTypeGenerateContent JobType = "generate_content"
)

// DefaultMaxRetries is how often a failed job is retried before it is dead-lettered
const DefaultMaxRetries = 3

// ErrInvalidJob is returned for jobs missing required fields
var ErrInvalidJob = errors.New("invalid job")

// Job represents a job in the queue
type Job struct {
	ID          uuid.UUID           `json:"id"`
	Type        JobType             `json:"type"`
	Filename    string              `json:"filename"`
	Name        string              `json:"name"`
	Kind        models.DocumentKind `json:"kind"`
	UserRequest string              `json:"user_request"`
	RequestID   string              `json:"request_id,omitempty"`  // Request that created the job, for log correlation
	NotBefore   *time.Time          `json:"not_before,omitempty"`  // Earliest time to process job (nil = immediate)
	NotAfter    *time.Time          `json:"not_after,omitempty"`   // Latest time to process job (nil = no expiration)
	CreatedAt   time.Time           `json:"created_at"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
}

// NewGenerateContentJob creates a job that generates content for an existing file
func NewGenerateContentJob(filename, name string, kind models.DocumentKind, userRequest string) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        JobTypeGenerateContent,
		Filename:    filename,
		Name:        name,
		Kind:        kind,
		UserRequest: userRequest,
		CreatedAt:   time.Now(),
		RetryCount:  0,
		MaxRetries:  DefaultMaxRetries,
	}
}

// Validate checks that the job carries what its type needs
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return errors.Join(ErrInvalidJob, errors.New("missing id"))
	}
	switch j.Type {
	case JobTypeGenerateContent:
		if strings.TrimSpace(j.Filename) == "" {
			return errors.Join(ErrInvalidJob, errors.New("missing filename"))
		}
		return nil
	default:
		return errors.Join(ErrInvalidJob, errors.New("unknown job type "+string(j.Type)))
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryAfter returns a copy of the job scheduled no earlier than delay from now
func (j *Job) RetryAfter(delay time.Duration) *Job {
	next := *j
	next.IncrementRetry()
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	return &next
}
