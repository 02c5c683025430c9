package models

import "time"

// Response holds the current answer for one (application, question) pair.
// The pair is unique; saving again overwrites the value. FileID references
// the external object store for upload questions.
type Response struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"applicationId"`
	QuestionID    int64     `json:"questionId"`
	Value         string    `json:"value"`
	FileID        *int64    `json:"fileId,omitempty"`
	UpdatedByID   int64     `json:"updatedById"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Answered reports whether the response counts as an answer for completion
// purposes.
func (r *Response) Answered() bool {
	return r.Value != "" || r.FileID != nil
}
