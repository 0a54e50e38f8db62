package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestSetupWithOptionsRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("rewardd", "test", Options{Output: &buf})
	logger.Info("campaign created", MaskField("token", "deadbeef"), slog.String("campaign", "c1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "campaign created", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "rewardd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["token"])
	require.Equal(t, "c1", line["campaign"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWithOptionsHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("rewardd", "", Options{Output: &buf, Level: slog.LevelWarn})
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestOptionsWriterRotatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewardd.log")
	w := Options{File: path, MaxBackups: 3}.writer()
	rotating, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	require.Equal(t, path, rotating.Filename)
	require.Equal(t, 100, rotating.MaxSize)
	require.Equal(t, 3, rotating.MaxBackups)
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, " ", MaskField("authorization", " ").Value.String())
	require.Equal(t, "session", MaskField("module", "session").Value.String())
	require.Contains(t, RedactionAllowlist(), "campaign")
	require.Contains(t, RedactionAllowlist(), "route")
}

func TestMaskFieldHidesHandlesInPaths(t *testing.T) {
	handle := "0x" + strings.Repeat("ab", 32)
	path := MaskField("path", "/v1/sessions/"+handle+"/revoke").Value.String()
	require.Equal(t, "/v1/sessions/"+RedactedValue+"/revoke", path)
	require.Equal(t, "/v1/reimburse/references/"+RedactedValue, MaskIdentifiers("/v1/reimburse/references/"+strings.Repeat("0F", 32)))
	require.Equal(t, "/v1/sessions/{handle}", MaskField("route", "/v1/sessions/{handle}").Value.String())
	require.Equal(t, "/v1/balances/alice", MaskIdentifiers("/v1/balances/alice"))
}
