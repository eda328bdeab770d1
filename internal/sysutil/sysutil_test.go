package sysutil

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":     zerolog.TraceLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"Warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestSetupLogger(t *testing.T) {
	origLevel, origLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		SetupLogger(&buf, "debug", false)
		log.Debug().Str("store", "database.db").Msg("opened")

		assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
		assert.Contains(t, buf.String(), `"store":"database.db"`)
		assert.Contains(t, buf.String(), `"message":"opened"`)
	})

	t.Run("pretty filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		SetupLogger(&buf, "info", true)
		log.Debug().Msg("dropped")
		log.Info().Msg("store ready")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "store ready")
		assert.NotEqual(t, byte('{'), out[0], "console writer output is not JSON")
	})
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "", FirstNonEmpty())
	assert.Equal(t, "", FirstNonEmpty(" ", "\t", "\n"))
	assert.Equal(t, "  db.sqlite  ", FirstNonEmpty("   ", "  db.sqlite  ", "database.db"))
	assert.Equal(t, "flag", FirstNonEmpty("flag", "env"))
}
