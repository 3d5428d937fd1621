package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/supabase-go"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient(url, serviceKey string) (*Client, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	supabaseClient, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
	}, nil
}

// InsertRow - 테이블에 레코드 한 건 추가 (응답 본문은 받지 않음)
func (c *Client) InsertRow(ctx context.Context, table string, row interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := c.supabase.From(table).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	logrus.Debugf("💾 Inserted row into %s", table)
	return nil
}
