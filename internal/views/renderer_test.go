package views

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	e := echo.New()
	tr, err := NewTemplateRenderer()
	require.NoError(t, err)
	tr.Register(e)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = c.Render(http.StatusForbidden, "forbidden", map[string]any{"home": "/home"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, `href="/home"`)
}
