package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestEnqueueHandler(t *testing.T) {
	queue := &memQueue{}
	handler := NewContinuationHandler(queue, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(`{"job_id":"job-1"}`))
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].JobID)
}

func TestEnqueueHandler_MissingJobID(t *testing.T) {
	queue := &memQueue{}
	handler := NewContinuationHandler(queue, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, queue.enqueued)
}

func TestEnqueueHandler_GetRejected(t *testing.T) {
	handler := NewContinuationHandler(&memQueue{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/continuations", nil)
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
