package internal

import (
	"flag"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	PostgresConfig struct {
		ConnectionUrl string `yaml:"connection_url" env:"POSTGRES_URL"`
	}

	KafkaConfig struct {
		Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Group           string   `yaml:"group" env-default:"generation-workers"`
		GenerationTopic string   `yaml:"generation_topic" env-default:"generation_requests"`
	}

	CaptionConfig struct {
		BaseURL       string        `yaml:"base_url" env:"CAPTION_BASE_URL"`
		ClipModelName string        `yaml:"clip_model_name" env-default:"ViT-L-14/openai"`
		Mode          string        `yaml:"mode" env-default:"best"`
		PollInterval  time.Duration `yaml:"poll_interval" env-default:"1s"`
		MaxAttempts   int           `yaml:"max_attempts" env-default:"300"`
		Timeout       time.Duration `yaml:"timeout" env-default:"5m"`
	}

	GenerationConfig struct {
		BaseURL     string `yaml:"base_url" env:"GENERATION_BASE_URL"`
		APIKey      string `yaml:"api_key" env:"GENERATION_API_KEY"`
		ExhibitName string `yaml:"exhibit_name" env-default:"text-to-image"`
		Samples     int    `yaml:"n_samples" env-default:"5"`
		Seed        int    `yaml:"seed" env-default:"-1"`
		Queued      bool   `yaml:"queued" env:"GENERATION_QUEUED"`
	}

	UploadConfig struct {
		BaseURL   string `yaml:"base_url" env-default:"https://api.bytescale.com"`
		AccountID string `yaml:"account_id" env:"UPLOAD_ACCOUNT_ID"`
		APIKey    string `yaml:"api_key" env:"UPLOAD_API_KEY"`
		MaxBytes  int64  `yaml:"max_bytes" env-default:"10485760"`
	}

	SessionConfig struct {
		MaxSessions int           `yaml:"max_sessions" env-default:"1000"`
		IdleTTL     time.Duration `yaml:"idle_ttl" env-default:"1h"`
	}

	AppConfig struct {
		Port         string           `yaml:"port" env:"PORT" env-default:"9000"`
		TemplateGLOB string           `yaml:"template_glob" env-default:"templates/*.html"`
		CookieSecret string           `yaml:"cookie_secret" env:"COOKIE_SECRET"`
		Postgres     PostgresConfig   `yaml:"postgres"`
		Kafka        KafkaConfig      `yaml:"kafka"`
		Caption      CaptionConfig    `yaml:"caption"`
		Generation   GenerationConfig `yaml:"generation"`
		Upload       UploadConfig     `yaml:"upload"`
		Session      SessionConfig    `yaml:"session"`
	}

	WorkerConfig struct {
		Kafka      KafkaConfig      `yaml:"kafka"`
		Generation GenerationConfig `yaml:"generation"`
	}
)

func ReadConfig[T any]() (*T, error) {
	var cfg T

	configPath := flag.String("config", "config.yaml", "Path to config")

	flag.Parse()

	err := cleanenv.ReadConfig(*configPath, &cfg)

	return &cfg, err
}
