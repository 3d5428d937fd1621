package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/model"
)

// 요청 본문 최대 크기 (base64 스타일 이미지 포함)
const maxRequestBytes = 32 << 20

// RunHandler - /run, /runsync, /status 핸들러
type RunHandler struct {
	store   Store
	worker  *Worker
	metrics *Metrics
}

// RunRequest - {"input": {...}}
type RunRequest struct {
	Input json.RawMessage `json:"input"`
}

func NewRunHandler(store Store, worker *Worker, metrics *Metrics) *RunHandler {
	return &RunHandler{store: store, worker: worker, metrics: metrics}
}

// RegisterRoutes - 라우트 등록
func (h *RunHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/run", h.HandleRun).Methods("POST", "OPTIONS")
	r.HandleFunc("/runsync", h.HandleRunSync).Methods("POST", "OPTIONS")
	r.HandleFunc("/status/{jobId}", h.HandleStatus).Methods("GET", "POST", "OPTIONS")
	logrus.Info("✅ Run routes registered: /run, /runsync, /status/{jobId}")
}

// HandleRun - POST /run (비동기, job id 반환)
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	job, ok := h.newJob(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.store.Enqueue(ctx, job); err != nil {
		logrus.Errorf("❌ [Run] Failed to enqueue job %s: %v", job.ID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	h.metrics.JobSubmitted()

	queueLen, _ := h.store.QueueLength(ctx)
	logrus.Infof("📥 [Run] Job %s enqueued (position: %d)", job.ID, queueLen)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     job.ID,
		"status": job.Status,
	})
}

// HandleRunSync - POST /runsync (요청 안에서 바로 실행)
func (h *RunHandler) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	job, ok := h.newJob(w, r)
	if !ok {
		return
	}

	if err := h.store.Save(r.Context(), job); err != nil {
		logrus.Warnf("⚠️  [RunSync] Failed to save job %s: %v", job.ID, err)
	}
	h.metrics.JobSubmitted()

	logrus.Infof("⚡ [RunSync] Running job %s inline", job.ID)
	writeJSON(w, http.StatusOK, h.worker.Execute(r.Context(), job))
}

// HandleStatus - GET /status/{jobId}
func (h *RunHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		logrus.Errorf("❌ [Status] Failed to fetch job %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job.View())
}

// newJob - 본문 파싱 후 새 job 생성 (실패 시 400 응답)
func (h *RunHandler) newJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}

	var req RunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logrus.Warnf("⚠️  [Run] Invalid request: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}

	return model.NewJob(uuid.NewString(), req.Input), true
}
