package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/config"
)

// Connect - Redis 연결 생성 후 ping으로 확인
func Connect(cfg *config.Config) (*redis.Client, error) {
	logrus.Infof("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	// TLS 설정 (관리형 Redis는 self-signed 인증서를 쓰는 경우가 있음)
	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true,
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logrus.Debug("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logrus.Info("✅ Redis connected successfully")
	return rdb, nil
}
