package worker

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/model"
)

// CancelHandler - Job 취소 API 핸들러
type CancelHandler struct {
	store    Store
	metrics  *Metrics
	notifier Notifier
}

func NewCancelHandler(store Store, metrics *Metrics, notifier Notifier) *CancelHandler {
	return &CancelHandler{store: store, metrics: metrics, notifier: notifier}
}

// RegisterRoutes - 라우트 등록
func (h *CancelHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cancel/{jobId}", h.CancelJob).Methods("POST", "OPTIONS")
	logrus.Info("✅ [CancelHandler] Routes registered: POST /cancel/{jobId}")
}

// CancelJob - Job 취소 처리
// 대기 중이면 바로 CANCELLED, 실행 중이면 플래그만 세워 결과를 버리게 함.
func (h *CancelHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	// CORS preflight
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	logrus.Infof("🛑 [CancelHandler] Cancel requested for job: %s", jobID)

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// 이미 끝난 job은 취소 불가
	if job.Status.IsTerminal() {
		logrus.Warnf("⚠️  [CancelHandler] Job already %s: %s", job.Status, jobID)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"id":     jobID,
			"status": job.Status,
			"error":  "job already " + string(job.Status),
		})
		return
	}

	// 1. 취소 플래그 설정
	if err := h.store.Cancel(r.Context(), jobID); err != nil {
		logrus.Errorf("❌ [CancelHandler] Failed to set cancel flag: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to set cancel flag")
		return
	}

	// 2. 대기 중인 job은 바로 CANCELLED (워커가 먼저 가져갔으면 플래그만 남김)
	if job.Status == model.StatusInQueue {
		now := time.Now().UTC()
		cancelled := *job
		cancelled.Status = model.StatusCancelled
		cancelled.CompletedAt = &now

		ok, err := h.store.CompareAndSave(r.Context(), &cancelled, model.StatusInQueue)
		if err != nil {
			logrus.Errorf("❌ [CancelHandler] Failed to save cancelled job: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ok {
			job = &cancelled
			h.metrics.JobCounted(model.StatusCancelled)
			if h.notifier != nil {
				h.notifier.Publish(job.View())
			}
		} else if current, err := h.store.Get(r.Context(), jobID); err == nil {
			job = current
		}
	}

	logrus.Infof("✅ [CancelHandler] Cancel flag set for job: %s (status: %s)", jobID, job.Status)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     jobID,
		"status": job.Status,
	})
}
