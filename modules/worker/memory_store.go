package worker

import (
	"context"
	"sync"

	"quel-style-server/modules/common/model"
)

// MemoryStore - 단일 프로세스용 (로컬 실행, 테스트)
// JOB_TTL은 적용하지 않는다.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]model.Job
	cancelled map[string]bool
	queue     chan string
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryStore{
		jobs:      make(map[string]model.Job),
		cancelled: make(map[string]bool),
		queue:     make(chan string, capacity),
	}
}

// Enqueue - 워커가 꺼내기 전에 저장, 큐가 가득 차면 저장한 job도 지움
func (s *MemoryStore) Enqueue(ctx context.Context, job *model.Job) error {
	if err := s.Save(ctx, job); err != nil {
		return err
	}

	select {
	case s.queue <- job.ID:
		return nil
	default:
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return ErrQueueFull
	}
}

func (s *MemoryStore) Dequeue(ctx context.Context) (string, error) {
	select {
	case id := <-s.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryStore) Save(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) CompareAndSave(ctx context.Context, job *model.Job, expected model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return false, ErrJobNotFound
	}
	if current.Status != expected {
		return false, nil
	}
	s.jobs[job.ID] = *job
	return true, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[jobID] = true
	return nil
}

func (s *MemoryStore) IsCancelled(ctx context.Context, jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelled[jobID]
}

func (s *MemoryStore) QueueLength(ctx context.Context) (int64, error) {
	return int64(len(s.queue)), nil
}
