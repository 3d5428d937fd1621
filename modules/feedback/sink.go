package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/database"
)

// FileSink - NDJSON 파일에 한 줄씩 추가
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileSink - 파일이 없으면 생성, 있으면 이어 쓰기
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create feedback log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback log: %w", err)
	}

	logrus.Infof("📝 [Feedback] Appending to %s", path)
	return &FileSink{path: path, file: f}, nil
}

func (s *FileSink) Record(ctx context.Context, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// SupabaseSink - Supabase 테이블에 insert
type SupabaseSink struct {
	db    *database.Client
	table string
}

func NewSupabaseSink(db *database.Client, table string) *SupabaseSink {
	return &SupabaseSink{db: db, table: table}
}

func (s *SupabaseSink) Record(ctx context.Context, rec Record) error {
	if err := s.db.InsertRow(ctx, s.table, rec); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

// MultiSink - 모든 sink에 기록, 실패는 모아서 반환
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
