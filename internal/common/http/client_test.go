package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	resp, err := NewClientFrom(server.Client()).PostJSON(context.Background(), server.URL, map[string]int{"a": 1})

	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, "short and stout", string(resp.Body))
}

func TestClient_PostJSON_MarshalError(t *testing.T) {
	_, err := NewClient(0).PostJSON(context.Background(), "http://unused", map[string]interface{}{"ch": make(chan int)})
	assert.ErrorContains(t, err, "failed to marshal request")
}
