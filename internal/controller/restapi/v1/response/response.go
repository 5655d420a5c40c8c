package response

import "github.com/andreyxaxa/Submission-Pipeline/internal/entity"

type Error struct {
	Error string `json:"error" example:"message"`
}

type Submission struct {
	SubmissionID string            `json:"submission_id"`
	Status       entity.Status     `json:"status"`
	Progress     int               `json:"progress"`
	LastError    *string           `json:"last_error,omitempty"`
	Documents    []entity.Document `json:"documents"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

type Requeued struct {
	Requeued bool `json:"requeued"`
}

type Purged struct {
	Queue  string `json:"queue"`
	Purged int    `json:"purged"`
}

type Cleaned struct {
	PoolID  string `json:"pool_id"`
	Removed int    `json:"removed"`
}

type Strategy struct {
	Strategy string `json:"strategy"`
}

type Ok struct {
	Ok bool `json:"ok"`
}
