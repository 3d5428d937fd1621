package worker

import (
	"sync/atomic"
	"time"

	"quel-style-server/modules/common/model"
)

// Metrics - 서버 메트릭
type Metrics struct {
	StartTime time.Time

	submitted     atomic.Int64
	inProgress    atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	cancelled     atomic.Int64
	activeStreams atomic.Int64
}

// MetricsSnapshot - /metrics 응답
type MetricsSnapshot struct {
	Uptime        string    `json:"uptime"`
	StartTime     time.Time `json:"startTime"`
	JobsSubmitted int64     `json:"jobsSubmitted"`
	JobsRunning   int64     `json:"jobsRunning"`
	JobsCompleted int64     `json:"jobsCompleted"`
	JobsFailed    int64     `json:"jobsFailed"`
	JobsCancelled int64     `json:"jobsCancelled"`
	ActiveStreams int64     `json:"activeStreams"`
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) JobSubmitted() { m.submitted.Add(1) }

func (m *Metrics) JobStarted() { m.inProgress.Add(1) }

// JobFinished - 실행을 마친 job의 최종 상태 기록
func (m *Metrics) JobFinished(status model.Status) {
	m.inProgress.Add(-1)
	m.JobCounted(status)
}

// JobCounted - 실행 없이 끝난 job (큐에서 취소 등)
func (m *Metrics) JobCounted(status model.Status) {
	switch status {
	case model.StatusCompleted:
		m.completed.Add(1)
	case model.StatusFailed:
		m.failed.Add(1)
	case model.StatusCancelled:
		m.cancelled.Add(1)
	}
}

func (m *Metrics) StreamOpened() { m.activeStreams.Add(1) }

func (m *Metrics) StreamClosed() { m.activeStreams.Add(-1) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime:        time.Since(m.StartTime).Round(time.Second).String(),
		StartTime:     m.StartTime,
		JobsSubmitted: m.submitted.Load(),
		JobsRunning:   m.inProgress.Load(),
		JobsCompleted: m.completed.Load(),
		JobsFailed:    m.failed.Load(),
		JobsCancelled: m.cancelled.Load(),
		ActiveStreams: m.activeStreams.Load(),
	}
}
