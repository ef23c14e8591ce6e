package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{`"10s"`, 10 * time.Second},
		{`"1m30s"`, 90 * time.Second},
		{`"500ms"`, 500 * time.Millisecond},
		{`""`, 0},
	}

	for _, tt := range tests {
		var d Duration
		require.NoError(t, yaml.Unmarshal([]byte(tt.input), &d))
		assert.Equal(t, tt.want, d.Duration(), "input %s", tt.input)
	}
}

func TestDurationUnmarshalYAMLInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, yaml.Unmarshal([]byte(`"ten seconds"`), &d))
}

func TestDurationMarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(Duration(10 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "10s\n", string(out))
}
