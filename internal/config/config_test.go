package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"capi-forwarder/internal/model"
)

const tagsYAML = `
tags:
  main:
    api_key: key-1
    hmac_secret: s3cret
    account_id: t2_abc
    access_token: token-1
    event_type: inherit
    log_type: always
    use_optimistic_scenario: true
    user_data_list:
      - name: phone_number
        value: "+1555"
    server_event_data_list:
      - name: value
        value: 12
`

func TestParseTags(t *testing.T) {
	tags, err := ParseTags([]byte(tagsYAML), "inline")
	require.NoError(t, err)

	tag, err := tags.Lookup("main")
	require.NoError(t, err)
	require.Equal(t, "key-1", tag.APIKey)
	require.Equal(t, "s3cret", tag.HMACSecret)
	require.Equal(t, "t2_abc", tag.AccountID)
	require.Equal(t, model.EventTypeInherit, tag.EventType)
	require.Equal(t, model.LogModeAlways, tag.LogType)
	require.True(t, tag.UseOptimisticScenario)
	require.Equal(t, []model.Param{{Name: "phone_number", Value: "+1555"}}, tag.UserDataList)
	require.Equal(t, []model.Param{{Name: "value", Value: 12}}, tag.ServerEventDataList)

	_, err = tags.Lookup("missing")
	require.True(t, errors.Is(err, ErrUnknownTag))
}

func TestParseTagsValidation(t *testing.T) {
	_, err := ParseTags([]byte("tags: {}"), "empty")
	require.Error(t, err)

	_, err = ParseTags([]byte("tags:\n  a:\n    api_key: k\n    account_id: acc\n"), "no-token")
	require.ErrorContains(t, err, "access_token")

	_, err = ParseTags([]byte("tags:\n  a:\n    api_key: k\n    account_id: acc\n    access_token: t\n    event_type: weird\n"), "bad-mode")
	require.ErrorContains(t, err, "event_type")
}

func TestLoadTagsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yml")
	require.NoError(t, os.WriteFile(path, []byte(tagsYAML), 0o600))

	tags, err := LoadTags(path)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("FORWARDER_ADDR", ":9999")
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_TOPIC_LOGS", "conversion.logs")
	t.Setenv("HTTP_TIMEOUT_MS", "2500")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.ForwarderAddr)
	require.True(t, cfg.DebugMode)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.LogShipping())
	require.Equal(t, 2500*time.Millisecond, cfg.HTTPTimeout)
	require.Equal(t, []string{"bot", "crawler", "spider"}, cfg.BotUserAgents)
}
