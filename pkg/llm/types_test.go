package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelai/modelkit/pkg/llm"
)

func TestTool_Validate(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"get_weather", true},
		{"_private", true},
		{"a", true},
		{"get-weather.v2", true},
		{"2bad", false},
		{"", false},
		{"has space", false},
	}
	for _, c := range cases {
		err := llm.Tool{Name: c.name}.Validate()
		if c.valid {
			assert.NoError(t, err, c.name)
		} else {
			assert.Error(t, err, c.name)
		}
	}
}

func TestTool_ValidateRejectsOverlongName(t *testing.T) {
	name := "a"
	for i := 0; i < 70; i++ {
		name += "b"
	}
	err := llm.Tool{Name: name}.Validate()
	assert.Error(t, err)
}
