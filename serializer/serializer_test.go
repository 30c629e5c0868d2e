package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name string
	Args []any
}

func TestSerialize_JSONRoundTrip(t *testing.T) {
	in := payload{Name: "echo", Args: []any{"a", float64(1)}}
	data, err := Serialize(nil, FormatJSON, in)
	assert.NoError(t, err)

	var out payload
	err = Deserialize(nil, FormatJSON, data, &out)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSerialize_EmptyFormatDefaultsToJSON(t *testing.T) {
	in := payload{Name: "echo"}
	data, err := Serialize(nil, Format(""), in)
	assert.NoError(t, err)

	var out payload
	err = Deserialize(nil, Format(""), data, &out)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSerialize_GobRoundTrip(t *testing.T) {
	in := payload{Name: "echo", Args: []any{"a"}}
	data, err := Serialize(nil, FormatGob, in)
	assert.NoError(t, err)

	var out payload
	err = Deserialize(nil, FormatGob, data, &out)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSerialize_GobLogsSecurityWarningOnBothPaths(t *testing.T) {
	logger := &capturingLogger{}
	data, err := Serialize(logger, FormatGob, payload{Name: "x"})
	assert.NoError(t, err)
	assert.True(t, logger.warnedWith("encode"))

	var out payload
	err = Deserialize(logger, FormatGob, data, &out)
	assert.NoError(t, err)
	assert.True(t, logger.warnedWith("decode"))
}

func TestSerialize_JSONNeverWarns(t *testing.T) {
	logger := &capturingLogger{}
	data, err := Serialize(logger, FormatJSON, payload{Name: "x"})
	assert.NoError(t, err)
	var out payload
	assert.NoError(t, Deserialize(logger, FormatJSON, data, &out))
	assert.Empty(t, logger.warnings)
}

func TestSerialize_UnknownFormatErrors(t *testing.T) {
	_, err := Serialize(nil, Format("XML"), payload{})
	assert.Error(t, err)

	err = Deserialize(nil, Format("XML"), []byte("{}"), &payload{})
	assert.Error(t, err)
}

type capturingLogger struct {
	warnings []string
}

func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Info(string, ...any)  {}
func (l *capturingLogger) Warn(msg string, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == "operation" {
			if op, ok := kv[i+1].(string); ok {
				l.warnings = append(l.warnings, op)
			}
		}
	}
}
func (l *capturingLogger) Error(string, ...any) {}

func (l *capturingLogger) warnedWith(op string) bool {
	for _, w := range l.warnings {
		if w == op {
			return true
		}
	}
	return false
}
