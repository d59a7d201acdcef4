package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerOverdueSweep persists the OVERDUE transition on past-due
	// open installments.
	TaskLedgerOverdueSweep = "ledger:overdue_sweep"
)

// OverdueSweepPayload carries scheduling metadata for the sweep.
type OverdueSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}
