package models

import "time"

// ArchiveStatus captures bulk transcript job lifecycle states.
type ArchiveStatus string

const (
	ArchiveStatusQueued     ArchiveStatus = "QUEUED"
	ArchiveStatusProcessing ArchiveStatus = "PROCESSING"
	ArchiveStatusFinished   ArchiveStatus = "FINISHED"
	ArchiveStatusFailed     ArchiveStatus = "FAILED"
)

// ArchiveJob is a persisted request to bundle every student's transcript into a ZIP.
type ArchiveJob struct {
	ID           string        `db:"id" json:"id"`
	Status       ArchiveStatus `db:"status" json:"status"`
	Progress     int           `db:"progress" json:"progress"`
	StudentCount int           `db:"student_count" json:"student_count"`
	ResultURL    *string       `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
}
