package record

import "time"

const (
	PROCESSING = "PROCESSING"
	COMPLETED  = "COMPLETED"
	FAILED     = "FAILED"
)

// Record is one processing attempt of one archive.
type Record struct {
	ID         int64
	Archive    string
	Status     string
	LevelRows  int
	ObjectRows int
	StartedAt  time.Time
	FinishedAt time.Time
}

func New(archive string) *Record {
	return &Record{
		Archive:   archive,
		Status:    PROCESSING,
		StartedAt: time.Now().UTC(),
	}
}
