package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_KnownTemplate(t *testing.T) {
	r := New()

	out := r.Render("welcome_v1", map[string]interface{}{
		"name": "Ada",
		"link": "https://x",
	})

	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "https://x")
}

func TestRender_UnknownKeyExpandsToEmpty(t *testing.T) {
	r := New()

	out := r.Render("welcome_v1", map[string]interface{}{"name": "Ada"})

	assert.Contains(t, out, "Ada")
	assert.NotContains(t, out, "{{link}}")
}

func TestRender_UnknownTemplateFallsBackToGeneric(t *testing.T) {
	r := New()

	out := r.Render("does_not_exist", map[string]interface{}{"body": "hi there"})

	assert.Contains(t, out, "hi there")
}

func TestRender_ScalarVariableIsStringified(t *testing.T) {
	r := New()

	out := r.Render("alert_v1", map[string]interface{}{"title": "Warn", "body": 42})

	assert.Equal(t, "Warn: 42", out)
}
