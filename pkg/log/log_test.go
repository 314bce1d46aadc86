package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("engine started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "info", line["level"])
	require.Equal(t, "engine started", line["message"])
}

func TestInitRespectsLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("should be filtered")
	require.Empty(t, buf.Bytes())

	Logger.Warn().Msg("should appear")
	require.NotEmpty(t, buf.Bytes())
}

func TestWithComponentAndNodeIDTagFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithComponent("raft").Info().Msg("hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "raft", line["component"])

	buf.Reset()
	WithNodeID("n1").Info().Msg("hello")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "n1", line["node_id"])
}

func TestWithTermRoleIndexTagFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithTerm(7).Info().Msg("term tagged")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.EqualValues(t, 7, line["term"])

	buf.Reset()
	WithRole("leader").Info().Msg("role tagged")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "leader", line["role"])

	buf.Reset()
	WithIndex(42).Info().Msg("index tagged")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.EqualValues(t, 42, line["index"])
}
