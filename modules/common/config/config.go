package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Backend 이름
const (
	BackendGemini  = "gemini"
	BackendOllama  = "ollama"
	BackendRunware = "runware"
	BackendStub    = "stub"
)

// Style describer 종류
const (
	DescriberVision    = "vision"
	DescriberCaption   = "caption"
	DescriberEmbedding = "embedding"
	DescriberStub      = "stub"
)

// Queue backend 종류
const (
	QueueRedis  = "redis"
	QueueMemory = "memory"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port        string
	ServiceName string
	LogLevel    string
	LogFormat   string

	// Queue
	QueueBackend      string
	JobTTL            time.Duration
	WorkerConcurrency int

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	FeedbackTable      string
	ArchiveEnabled     bool
	ArchiveBucket      string

	// Feedback log (NDJSON)
	FeedbackLogPath string

	// Pipeline
	RewriterBackend   string
	SynthBackend      string
	StyleDescriber    string
	RewriteMaxTokens  int
	RewriteSeed       int
	SynthSteps        int
	SynthWidth        int
	SynthHeight       int
	RejectEmptyPrompt bool

	// Style image
	StyleImageMaxBytes     int64
	StyleImageMaxPixels    int64
	StyleImageMaxSide      int
	StyleImageFetchTimeout time.Duration
	StyleImageBlockPrivate bool

	// Gemini API
	GeminiAPIKeys    []string
	GeminiChatModel  string
	GeminiImageModel string

	// Ollama
	OllamaHost    string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Runware (FLUX)
	RunwareAPIKey string
	RunwareAPIURL string
	RunwareModel  string

	// Vision encoder
	EncoderURL   string
	EncoderModel string
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "quel-style-server"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		// Queue
		QueueBackend:      strings.ToLower(getEnv("QUEUE_BACKEND", QueueMemory)),
		JobTTL:            getDuration("JOB_TTL", 24*time.Hour),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 1),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		// Supabase
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		FeedbackTable:      getEnv("SUPABASE_FEEDBACK_TABLE", "style_feedback"),
		ArchiveEnabled:     getBool("ARCHIVE_ENABLED", false),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", "attachments"),

		FeedbackLogPath: getEnv("FEEDBACK_LOG_PATH", "feedback.ndjson"),

		// Pipeline
		RewriterBackend:   strings.ToLower(getEnv("REWRITER_BACKEND", BackendStub)),
		SynthBackend:      strings.ToLower(getEnv("SYNTH_BACKEND", BackendStub)),
		StyleDescriber:    strings.ToLower(getEnv("STYLE_DESCRIBER", DescriberVision)),
		RewriteMaxTokens:  getInt("REWRITE_MAX_TOKENS", 150),
		RewriteSeed:       getInt("REWRITE_SEED", 0),
		SynthSteps:        getInt("SYNTH_STEPS", 30),
		SynthWidth:        getInt("SYNTH_WIDTH", 1024),
		SynthHeight:       getInt("SYNTH_HEIGHT", 1024),
		RejectEmptyPrompt: getBool("REJECT_EMPTY_REWRITE", false),

		// Style image
		StyleImageMaxBytes:     int64(getInt("STYLE_IMAGE_MAX_BYTES", 20<<20)),
		StyleImageMaxPixels:    int64(getInt("STYLE_IMAGE_MAX_PIXELS", 40_000_000)),
		StyleImageMaxSide:      getInt("STYLE_IMAGE_MAX_SIDE", 1024),
		StyleImageFetchTimeout: getDuration("STYLE_IMAGE_FETCH_TIMEOUT", 30*time.Second),
		StyleImageBlockPrivate: getBool("STYLE_IMAGE_BLOCK_PRIVATE", false),

		// Gemini API (콤마로 여러 키 지정 가능)
		GeminiAPIKeys:    splitList(getEnv("GEMINI_API_KEYS", getEnv("GEMINI_API_KEY", ""))),
		GeminiChatModel:  getEnv("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),

		// Ollama
		OllamaHost:    getEnv("OLLAMA_HOST", "http://127.0.0.1:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llava:13b"),
		OllamaTimeout: getDuration("OLLAMA_TIMEOUT", 5*time.Minute),

		// Runware
		RunwareAPIKey: getEnv("RUNWARE_API_KEY", ""),
		RunwareAPIURL: getEnv("RUNWARE_API_URL", "https://api.runware.ai/v1"),
		RunwareModel:  getEnv("RUNWARE_MODEL", "runware:101@1"),

		// Vision encoder
		EncoderURL:   strings.TrimRight(getEnv("ENCODER_URL", "http://127.0.0.1:11434"), "/"),
		EncoderModel: getEnv("ENCODER_MODEL", "siglip-so400m"),
	}

	// 필수 환경변수 검증
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Info("✅ Configuration loaded successfully")
	logrus.Infof("   Queue: %s (concurrency: %d)", cfg.QueueBackend, cfg.WorkerConcurrency)
	logrus.Infof("   Rewriter: %s, Describer: %s, Synth: %s", cfg.RewriterBackend, cfg.StyleDescriber, cfg.SynthBackend)
	if cfg.QueueBackend == QueueRedis {
		logrus.Infof("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	}
	if cfg.SupabaseEnabled() {
		logrus.Infof("   Supabase: %s (archive: %v)", cfg.SupabaseURL, cfg.ArchiveEnabled)
	}

	return cfg, nil
}

// Validate - 필수 환경변수 검증
func (c *Config) Validate() error {
	switch c.QueueBackend {
	case QueueRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required when QUEUE_BACKEND=redis")
		}
	case QueueMemory:
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}

	switch c.RewriterBackend {
	case BackendGemini, BackendOllama, BackendStub:
	default:
		return fmt.Errorf("unknown REWRITER_BACKEND %q", c.RewriterBackend)
	}

	switch c.SynthBackend {
	case BackendGemini, BackendRunware, BackendStub:
	default:
		return fmt.Errorf("unknown SYNTH_BACKEND %q", c.SynthBackend)
	}

	switch c.StyleDescriber {
	case DescriberVision, DescriberCaption, DescriberEmbedding, DescriberStub:
	default:
		return fmt.Errorf("unknown STYLE_DESCRIBER %q", c.StyleDescriber)
	}

	usesGemini := c.RewriterBackend == BackendGemini || c.SynthBackend == BackendGemini
	if usesGemini && len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
	}
	if c.SynthBackend == BackendRunware && c.RunwareAPIKey == "" {
		return fmt.Errorf("RUNWARE_API_KEY is required for the runware backend")
	}
	if c.ArchiveEnabled && !c.SupabaseEnabled() {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when ARCHIVE_ENABLED=true")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.RewriteMaxTokens < 1 {
		return fmt.Errorf("REWRITE_MAX_TOKENS must be positive")
	}
	if c.SynthSteps < 1 {
		return fmt.Errorf("SYNTH_STEPS must be positive")
	}
	return nil
}

// SupabaseEnabled - Supabase 연동 여부
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			return parsed
		}
		logrus.Warnf("⚠️  Invalid integer for %s: %q, using %d", key, s, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
		logrus.Warnf("⚠️  Invalid boolean for %s: %q, using %v", key, s, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if parsed, err := time.ParseDuration(s); err == nil {
			return parsed
		}
		logrus.Warnf("⚠️  Invalid duration for %s: %q, using %s", key, s, defaultValue)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
