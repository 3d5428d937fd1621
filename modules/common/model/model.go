package model

import (
	"encoding/json"
	"time"
)

// Status - 서버리스 런타임 job 상태
type Status string

const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal - 더 이상 상태가 바뀌지 않는지
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job - 큐에 저장되는 작업 (job:{id})
type Job struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// JobStatus - /status, /runsync, /stream 응답
type JobStatus struct {
	ID            string          `json:"id"`
	Status        Status          `json:"status"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	DelayTime     int64           `json:"delayTime"`     // ms, 큐 대기 시간
	ExecutionTime int64           `json:"executionTime"` // ms, 실행 시간
}

// NewJob - IN_QUEUE 상태의 새 job
func NewJob(id string, input json.RawMessage) *Job {
	return &Job{
		ID:        id,
		Status:    StatusInQueue,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
}

// View - 외부에 보여줄 상태
func (j *Job) View() JobStatus {
	view := JobStatus{
		ID:     j.ID,
		Status: j.Status,
		Output: j.Output,
		Error:  j.Error,
	}

	if j.StartedAt != nil {
		view.DelayTime = j.StartedAt.Sub(j.CreatedAt).Milliseconds()
		if j.CompletedAt != nil {
			view.ExecutionTime = j.CompletedAt.Sub(*j.StartedAt).Milliseconds()
		}
	} else if j.CompletedAt != nil {
		view.DelayTime = j.CompletedAt.Sub(j.CreatedAt).Milliseconds()
	}
	return view
}
