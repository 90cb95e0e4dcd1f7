package pkg

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponseBytes(t *testing.T) {
	rec := httptest.NewRecorder()

	testJson := `{"key":"val"}`
	WriteResponseBytes(rec, ContentType.JSON, []byte(testJson), http.StatusCreated)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ContentType.JSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, testJson, rec.Body.String())
}

func TestWriteTextResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteTextResponse(rec, "progress will not be saved", http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ContentType.Text, rec.Header().Get("Content-Type"))
	assert.Equal(t, "progress will not be saved", rec.Body.String())
}

func TestWriteJSONResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSONResponse(rec, map[string]int{"reps": 5}, http.StatusOK)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentType.JSON, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"reps":5}`, rec.Body.String())
}

func TestWriteJSONResponse_MarshalError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSONResponse(rec, math.Inf(1), http.StatusOK)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
