package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/llmerr"
)

func TestValidateToolSchema_NilParametersOK(t *testing.T) {
	assert.NoError(t, llm.ValidateToolSchema(llm.Tool{Name: "wx"}))
}

func TestValidateToolSchema_ValidSchema(t *testing.T) {
	tool := llm.Tool{
		Name: "get_weather",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"city"},
		},
	}
	assert.NoError(t, llm.ValidateToolSchema(tool))
}

func TestValidateToolSchema_InvalidSchema(t *testing.T) {
	tool := llm.Tool{
		Name: "bad",
		Parameters: map[string]interface{}{
			"type": "not-a-real-type",
		},
	}
	err := llm.ValidateToolSchema(tool)
	assert.True(t, llmerr.IsInvalidInput(err))
}
