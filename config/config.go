package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"fern"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"3" validate:"min=1"`

	// Store driver: rest (PostgREST/Supabase), postgres, or memory
	StoreDriver string `env:"STORE_DRIVER" env-default:"rest" validate:"oneof=postgres rest memory"`
	// Supabase project URL
	SupabaseURL string `env:"SUPABASE_URL" env-default:"" validate:"required_if=StoreDriver rest"`
	// Supabase service role key
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY" env-default:"" validate:"required_if=StoreDriver rest"`
	// Rows per page on full-table reads
	StorePageSize int `env:"STORE_PAGE_SIZE" env-default:"1000" validate:"min=1"`
	// Store request timeout
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" env-default:"30s"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"" validate:"required_if=StoreDriver postgres"`
	// Database port
	DatabasePort int `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"5"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	// Run migrations on startup
	DatabaseMigrate bool `env:"DB_MIGRATE" env-default:"false"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion uint `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Source workbooks
	ExcelFile     string `env:"EXCEL_FILE" env-default:""`
	ExcelPassword string `env:"EXCEL_PASSWORD" env-default:""`
	ClaimsFile    string `env:"CLAIMS_FILE" env-default:""`

	// Import
	ChunkSize                 int           `env:"CHUNK_SIZE" env-default:"50" validate:"min=1"`
	ConnectivityRetryAttempts int           `env:"CONNECTIVITY_RETRY_ATTEMPTS" env-default:"3" validate:"min=1"`
	ConnectivityRetryUnit     time.Duration `env:"CONNECTIVITY_RETRY_UNIT" env-default:"1s"`
	PreviewRows               int           `env:"PREVIEW_ROWS" env-default:"100" validate:"min=1"`
	PreviewDir                string        `env:"PREVIEW_DIR" env-default:"previews"`
	BackupDir                 string        `env:"BACKUP_DIR" env-default:"backups"`
	ErrorReportLimit          int           `env:"ERROR_REPORT_LIMIT" env-default:"10" validate:"min=1"`
	DomesticCurrency          string        `env:"DOMESTIC_CURRENCY" env-default:"UZS" validate:"len=3"`
	DefaultCurrency           string        `env:"DEFAULT_CURRENCY" env-default:"USD" validate:"len=3"`
	KeywordsFile              string        `env:"KEYWORDS_FILE" env-default:""`

	// Kafka Producer. Events are disabled when no brokers are set.
	KafkaBrokers      []string      `env:"KAFKA_BROKERS" env-default:""`
	KafkaEventsTopic  string        `env:"KAFKA_EVENTS_TOPIC" env-default:"fern.import.events"`
	KafkaBatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" env-default:"10ms"`
	KafkaRequiredAcks int           `env:"KAFKA_REQUIRED_ACKS" env-default:"-1" validate:"oneof=-1 0 1"`

	// OTLP trace exporter. Tracing is disabled when no endpoint is set.
	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	OtelProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OtelInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`

	// Metrics textfile written at the end of each run
	MetricsFile string `env:"METRICS_FILE" env-default:""`
}

// Load reads .env when present, then the environment, and validates the
// result.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	return utils.Validate(cfg)
}

func compact(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
