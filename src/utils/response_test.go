package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendJSONError(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSONError(w, "bad input", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad input"}`, w.Body.String())
}

func TestSendStatus(t *testing.T) {
	w := httptest.NewRecorder()

	SendStatus(w, "saved")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"saved"}`, w.Body.String())
}

func TestSendJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSON(w, nil, http.StatusNoContent)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
