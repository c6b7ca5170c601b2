package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthAnomalyScan is the task type for the failed-login scan.
	TaskAuthAnomalyScan = "auth:anomaly_scan"
)

// AnomalyScanPayload bounds the failed-login scan.
type AnomalyScanPayload struct {
	WindowHours int `json:"windowHours"`
	Threshold   int `json:"threshold"`
}

// NewAnomalyScanTask constructs an Asynq task for the failed-login scan.
func NewAnomalyScanTask(payload AnomalyScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthAnomalyScan, data), nil
}
