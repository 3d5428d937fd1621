package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/model"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 모든 origin 허용 (CORS 정책과 동일)
		return true
	},
}

const (
	writeWait = 10 * time.Second
	// 다른 인스턴스에서 처리 중인 job은 store를 주기적으로 다시 읽어 확인
	defaultRefreshInterval = 2 * time.Second
)

// StreamHub - job별 websocket 구독자 관리
type StreamHub struct {
	store   Store
	metrics *Metrics
	refresh time.Duration

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan model.JobStatus
}

func NewStreamHub(store Store, metrics *Metrics) *StreamHub {
	return &StreamHub{
		store:   store,
		metrics: metrics,
		refresh: defaultRefreshInterval,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// RegisterRoutes - 라우트 등록
func (h *StreamHub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stream/{jobId}", h.HandleStream)
	logrus.Info("✅ Stream route registered: /stream/{jobId} (websocket)")
}

// Publish - 구독자에게 상태 전달 (느린 구독자는 건너뜀, 주기적 refresh로 따라잡음)
func (h *StreamHub) Publish(status model.JobStatus) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[status.ID] {
		select {
		case sub.send <- status:
		default:
		}
	}
}

func (h *StreamHub) subscribe(jobID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*subscriber]struct{})
	}
	h.subs[jobID][sub] = struct{}{}
}

func (h *StreamHub) unsubscribe(jobID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[jobID], sub)
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// HandleStream - GET /stream/{jobId}, 상태가 바뀔 때마다 JobStatus 전송 후 종료 상태에서 닫음
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("⚠️  [Stream] WebSocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan model.JobStatus, 16)}
	h.subscribe(jobID, sub)
	h.metrics.StreamOpened()
	logrus.Infof("🔍 [Stream] Client subscribed to job %s", jobID)

	defer func() {
		h.unsubscribe(jobID, sub)
		h.metrics.StreamClosed()
		conn.Close()
		logrus.Infof("👋 [Stream] Client left job %s", jobID)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readPump(conn, cancel)

	h.writePump(ctx, jobID, sub, job.View())
}

// readPump - 클라이언트 메시지는 무시하고 연결 종료만 감지
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("[Stream] WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (h *StreamHub) writePump(ctx context.Context, jobID string, sub *subscriber, initial model.JobStatus) {
	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()

	var last []byte
	// send - 바뀐 상태만 전송, 종료 상태면 false
	send := func(status model.JobStatus) bool {
		data, err := json.Marshal(status)
		if err != nil {
			logrus.Errorf("❌ [Stream] Error marshaling status: %v", err)
			return false
		}
		if !bytes.Equal(data, last) {
			last = data
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.Debugf("[Stream] WebSocket write error: %v", err)
				return false
			}
		}
		return !status.Status.IsTerminal()
	}

	if !send(initial) {
		h.closeNormally(sub.conn)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case status := <-sub.send:
			if !send(status) {
				h.closeNormally(sub.conn)
				return
			}
		case <-ticker.C:
			job, err := h.store.Get(ctx, jobID)
			if err != nil {
				continue
			}
			if !send(job.View()) {
				h.closeNormally(sub.conn)
				return
			}
		}
	}
}

func (h *StreamHub) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
