package model

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// IngestJob tracks an asynchronous file ingestion. Terminal states keep the
// committed chunk count so a partially ingested upload stays visible.
type IngestJob struct {
	ID              string `json:"job_id"`
	Status          string `json:"status"`
	FileName        string `json:"file_name"`
	Source          string `json:"source"`
	Collection      string `json:"collection"`
	Progress        int    `json:"progress"`
	Message         string `json:"message"`
	ChunksCreated   int    `json:"chunks_created"`
	ChunksCommitted int    `json:"chunks_committed"`
	Ctime           int64  `json:"created_at"`
	Mtime           int64  `json:"updated_at"`
}

func JobStatusTerminal(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
