package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/logging"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("dropped")
	log.WithField("user_id", "alice").Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "alice", entry["user_id"])
}

func TestNew_UnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(config.LogConfig{Level: "chatty"}, &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
