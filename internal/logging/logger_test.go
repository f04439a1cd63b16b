package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logging.ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, logging.ParseLevel(" WARN "))
	assert.Equal(t, zerolog.Disabled, logging.ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("bogus"))
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Format = "json"
	cfg.Output = &buf
	ctx := logging.WithContext(context.Background(), logging.New(cfg))

	ctx = logging.WithComponent(ctx, "surveyor")
	logging.FromContext(ctx).Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "surveyor", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestFromContextWithoutLoggerIsDisabled(t *testing.T) {
	logger := logging.FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}

func TestWithPageTagsLinesAndTravelsInContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Format = "json"
	cfg.Output = &buf
	ctx := logging.WithContext(context.Background(), logging.New(cfg))

	_, ok := logging.PageFromContext(ctx)
	assert.False(t, ok)

	ctx = logging.WithPage(ctx, logging.NewPage("p-1", "https://news.test:8443/a?b=c"))
	ctx = logging.WithBackend(ctx, "static")
	logging.FromContext(ctx).Info().Msg("page up")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "p-1", entry[logging.FieldPageID])
	assert.Equal(t, "https://news.test:8443/a?b=c", entry[logging.FieldURL])
	assert.Equal(t, "news.test", entry[logging.FieldHost])
	assert.Equal(t, "static", entry[logging.FieldBackend])

	page, ok := logging.PageFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, logging.Page{ID: "p-1", URL: "https://news.test:8443/a?b=c", Host: "news.test"}, page)
}

func TestNewPageWithoutHost(t *testing.T) {
	assert.Equal(t, "", logging.NewPage("p", "file:///tmp/page.html").Host)
	assert.Equal(t, "", logging.NewPage("p", "://bad").Host)
}
