package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"capi-forwarder/internal/model"
)

// ErrUnknownTag is returned when a collect request names a tag that is not configured.
var ErrUnknownTag = errors.New("unknown tag")

// Config holds shared service configuration sourced from environment variables.
type Config struct {
	Environment       string
	LogLevel          string
	ForwarderAddr     string
	QueryAddr         string
	LoaderMetricsAddr string
	EndpointBaseURL   string
	HTTPTimeout       time.Duration
	DebugMode         bool
	KafkaBrokers      []string
	KafkaTopicLogs    string
	ClickHouseDSN     string
	HMACSecret        string
	CORSAllowOrigins  []string
	BotUserAgents     []string
	BatchSize         int
	BatchInterval     time.Duration
	TagsConfigPath    string
}

// Tag is one forwarding destination: the credentials its callers present plus the
// mapping configuration.
type Tag struct {
	APIKey          string `yaml:"api_key"`
	HMACSecret      string `yaml:"hmac_secret"`
	model.TagConfig `yaml:",inline"`
}

// Tags is the parsed tags file keyed by tag id.
type Tags map[string]Tag

// Lookup returns the tag with the given id.
func (t Tags) Lookup(id string) (Tag, error) {
	tag, ok := t[id]
	if !ok {
		return Tag{}, fmt.Errorf("%w: %s", ErrUnknownTag, id)
	}
	return tag, nil
}

type tagsFile struct {
	Tags map[string]Tag `yaml:"tags"`
}

// Load parses process environment variables into a Config struct, applying defaults
// when unset. A .env file in the working directory is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:       getenv("ENVIRONMENT", "development"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		ForwarderAddr:     getenv("FORWARDER_ADDR", ":8080"),
		QueryAddr:         getenv("QUERY_ADDR", ":8081"),
		LoaderMetricsAddr: getenv("LOADER_METRICS_ADDR", ":9101"),
		EndpointBaseURL:   getenv("ENDPOINT_BASE_URL", "https://ads-api.reddit.com"),
		HTTPTimeout:       durationDefault("HTTP_TIMEOUT_MS", 10000),
		DebugMode:         boolDefault("DEBUG_MODE", false),
		KafkaBrokers:      splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicLogs:    os.Getenv("KAFKA_TOPIC_LOGS"),
		ClickHouseDSN:     getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000?database=default&dial_timeout=5s&compress=true"),
		HMACSecret:        os.Getenv("HMAC_SECRET"),
		CORSAllowOrigins:  splitAndTrim(getenv("CORS_ALLOW_ORIGINS", "*")),
		BotUserAgents:     splitAndTrim(getenv("BOT_UA_DENYLIST", "bot,crawler,spider")),
		BatchSize:         atoiDefault("LOADER_BATCH_SIZE", 1000),
		BatchInterval:     durationDefault("LOADER_BATCH_INTERVAL_MS", 800),
		TagsConfigPath:    getenv("TAGS_CONFIG_PATH", "config/tags.dev.yml"),
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("LOADER_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

// LogShipping reports whether log entries should also be written to Kafka.
func (c Config) LogShipping() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopicLogs != ""
}

func getenv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func atoiDefault(key string, def int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func boolDefault(key string, def bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func durationDefault(key string, defMS int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(defMS) * time.Millisecond
}

// LoadTags reads and validates the tags file.
func LoadTags(path string) (Tags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTags(data, path)
}

// ParseTags decodes tags file content. source names the file in error messages.
func ParseTags(data []byte, source string) (Tags, error) {
	var file tagsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	if len(file.Tags) == 0 {
		return nil, fmt.Errorf("no tags configured in %s", source)
	}
	out := make(Tags, len(file.Tags))
	for id, tag := range file.Tags {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := validateTag(tag); err != nil {
			return nil, fmt.Errorf("tag %s in %s: %w", id, source, err)
		}
		out[id] = tag
	}
	return out, nil
}

func validateTag(tag Tag) error {
	switch {
	case tag.APIKey == "":
		return errors.New("missing api_key")
	case tag.AccountID == "":
		return errors.New("missing account_id")
	case tag.AccessToken == "":
		return errors.New("missing access_token")
	}
	switch tag.EventType {
	case model.EventTypeInherit, model.EventTypeCustom, model.EventTypeStandard, "":
	default:
		return fmt.Errorf("unsupported event_type %q", tag.EventType)
	}
	switch tag.LogType {
	case model.LogModeUnset, model.LogModeNo, model.LogModeDebug, model.LogModeAlways:
	default:
		return fmt.Errorf("unsupported log_type %q", tag.LogType)
	}
	return nil
}
