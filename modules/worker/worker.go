package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/logger"
	"quel-style-server/modules/common/model"
	"quel-style-server/modules/stylegen"
)

// 큐 에러 후 재시도 대기
var retryBackoff = 5 * time.Second

// EventHandler - 요청 하나를 처리하는 서버리스 핸들러
type EventHandler interface {
	Handle(ctx context.Context, event stylegen.Event) stylegen.Response
}

// Notifier - job 상태 변경 알림 (websocket stream)
type Notifier interface {
	Publish(status model.JobStatus)
}

// Worker - 큐에서 job을 꺼내 핸들러로 실행
type Worker struct {
	store    Store
	handler  EventHandler
	metrics  *Metrics
	notifier Notifier

	wg sync.WaitGroup
}

func NewWorker(store Store, handler EventHandler, metrics *Metrics, notifier Notifier) *Worker {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Worker{store: store, handler: handler, metrics: metrics, notifier: notifier}
}

// Start - ctx가 끝날 때까지 큐 감시, 종료 시 실행 중인 job을 기다림
func (w *Worker) Start(ctx context.Context) {
	logrus.Infof("👀 [Worker] Watching queue: %s", queueKey)

	for {
		jobID, err := w.store.Dequeue(ctx)

		// 종료 직전에 꺼낸 job도 큐에서 이미 빠졌으므로 반드시 실행
		if err == nil && jobID != "" {
			w.dispatch(ctx, jobID)
		}
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logrus.Errorf("❌ [Worker] Dequeue error: %v", err)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
			}
		}
	}

	logrus.Info("🛑 [Worker] Stopping, waiting for in-flight jobs")
	w.wg.Wait()
}

// dispatch - goroutine으로 비동기 실행, 모델 동시성은 파이프라인 semaphore가 제한
func (w *Worker) dispatch(ctx context.Context, jobID string) {
	logrus.Infof("🎯 [Worker] Received new job: %s", jobID)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Process(context.WithoutCancel(ctx), jobID)
	}()
}

// Process - 큐에서 꺼낸 job 실행 (취소된 job은 건너뜀)
// IN_QUEUE에서 벗어나는 전이는 CompareAndSave로 선점해 cancel 핸들러와 한쪽만 반영된다.
func (w *Worker) Process(ctx context.Context, jobID string) {
	log := logger.For("Worker").WithField("job_id", jobID)

	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		log.Errorf("❌ [Worker] Failed to fetch job: %v", err)
		return
	}
	if job.Status != model.StatusInQueue {
		log.Infof("⏭️  [Worker] Job already %s, skipping", job.Status)
		return
	}

	if w.store.IsCancelled(ctx, jobID) {
		now := time.Now().UTC()
		job.Status = model.StatusCancelled
		job.CompletedAt = &now
		if w.claim(ctx, log, job) {
			w.metrics.JobCounted(model.StatusCancelled)
			log.Info("🛑 [Worker] Job cancelled before start, skipping")
		}
		return
	}

	started := time.Now().UTC()
	job.Status = model.StatusInProgress
	job.StartedAt = &started
	if !w.claim(ctx, log, job) {
		return
	}
	w.run(ctx, log, job)
}

// claim - 저장된 job이 아직 IN_QUEUE일 때만 새 상태로 저장하고 알림
func (w *Worker) claim(ctx context.Context, log *logrus.Entry, job *model.Job) bool {
	ok, err := w.store.CompareAndSave(ctx, job, model.StatusInQueue)
	if err != nil {
		logger.HandleError(fmt.Errorf("❌ [Worker] Failed to claim job: %w", err), log.Data)
		return false
	}
	if !ok {
		log.Info("⏭️  [Worker] Job left IN_QUEUE before it could be claimed, skipping")
		return false
	}
	if w.notifier != nil {
		w.notifier.Publish(job.View())
	}
	return true
}

// Execute - IN_PROGRESS → 핸들러 실행 → COMPLETED | FAILED | CANCELLED
func (w *Worker) Execute(ctx context.Context, job *model.Job) model.JobStatus {
	log := logger.For("Worker").WithField("job_id", job.ID)

	started := time.Now().UTC()
	job.Status = model.StatusInProgress
	job.StartedAt = &started
	w.save(ctx, log, job)
	return w.run(ctx, log, job)
}

// run - IN_PROGRESS로 저장된 job 실행, 이후 상태는 워커만 기록
func (w *Worker) run(ctx context.Context, log *logrus.Entry, job *model.Job) model.JobStatus {
	w.metrics.JobStarted()

	var resp stylegen.Response
	var input *stylegen.Input
	if len(job.Input) > 0 {
		if err := json.Unmarshal(job.Input, &input); err != nil {
			resp = stylegen.Response{Error: "invalid input: " + err.Error()}
		}
	}
	if resp.Error == "" {
		resp = w.handler.Handle(ctx, stylegen.Event{ID: job.ID, Input: input})
	}

	completed := time.Now().UTC()
	job.CompletedAt = &completed

	switch {
	case w.store.IsCancelled(ctx, job.ID):
		// 실행 중 취소된 job은 결과를 버림
		job.Status = model.StatusCancelled
		job.Output = nil
		job.Error = ""
	case resp.Error != "":
		job.Status = model.StatusFailed
		job.Error = resp.Error
	default:
		output, err := json.Marshal(resp.Output)
		if err != nil {
			job.Status = model.StatusFailed
			job.Error = "failed to encode output: " + err.Error()
			break
		}
		job.Status = model.StatusCompleted
		job.Output = output
	}

	w.save(ctx, log, job)
	w.metrics.JobFinished(job.Status)

	view := job.View()
	log.WithFields(logrus.Fields{
		"status":       job.Status,
		"delay_ms":     view.DelayTime,
		"execution_ms": view.ExecutionTime,
	}).Info("✅ [Worker] Job finished")
	return view
}

func (w *Worker) save(ctx context.Context, log *logrus.Entry, job *model.Job) {
	if err := w.store.Save(ctx, job); err != nil {
		logger.HandleError(fmt.Errorf("❌ [Worker] Failed to save job state: %w", err), log.Data)
	}
	if w.notifier != nil {
		w.notifier.Publish(job.View())
	}
}

// isNotFound - store 에러가 job 없음인지
func isNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
