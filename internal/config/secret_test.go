package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, `"[REDACTED]"`, fmt.Sprintf("%#v", s))
	assert.Equal(t, "super-secret", s.Reveal())

	j, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(j))

	y, err := yaml.Marshal(struct {
		Key Secret `yaml:"key"`
	}{s})
	require.NoError(t, err)
	assert.Contains(t, string(y), "[REDACTED]")
	assert.NotContains(t, string(y), "super-secret")
}

func TestSecret_Empty(t *testing.T) {
	var s Secret
	assert.Equal(t, "", s.String())
	assert.Equal(t, `""`, s.GoString())

	j, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(j))
}

func TestSecret_List(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Secret(" a,b ,, c,").List())
	assert.Empty(t, Secret("").List())
	assert.Equal(t, "[REDACTED]", fmt.Sprint(Secret("a,b")))
}
