package worker

import (
	"context"
	"errors"

	"quel-style-server/modules/common/model"
)

const queueKey = "jobs:queue"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueFull   = errors.New("job queue is full")
)

// Store - job 큐와 상태 저장소
type Store interface {
	// Enqueue - job 저장 후 큐에 추가
	Enqueue(ctx context.Context, job *model.Job) error
	// Dequeue - 다음 job id (대기 시간이 끝나면 "", nil)
	Dequeue(ctx context.Context) (string, error)
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Save(ctx context.Context, job *model.Job) error
	// CompareAndSave - 저장된 상태가 expected일 때만 저장 (상태 전이 선점)
	CompareAndSave(ctx context.Context, job *model.Job, expected model.Status) (bool, error)
	// Cancel - 취소 플래그 설정 (상태는 바꾸지 않음)
	Cancel(ctx context.Context, jobID string) error
	IsCancelled(ctx context.Context, jobID string) bool
	QueueLength(ctx context.Context) (int64, error)
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

func cancelKey(jobID string) string {
	return "job:" + jobID + ":cancelled"
}
