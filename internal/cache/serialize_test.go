package cache

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeKeepsResponseReadable(t *testing.T) {
	resp := &http.Response{
		Status:        "404 Not Found",
		StatusCode:    http.StatusNotFound,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(`{"error":"not found"}`)),
		ContentLength: int64(len(`{"error":"not found"}`)),
	}

	payload, err := serialize(resp)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"error":"not found"}`, string(body))

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)
	restored, err := deserialize(payload, req)
	require.NoError(t, err)
	defer func() { _ = restored.Body.Close() }()

	restoredBody, err := io.ReadAll(restored.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, restored.StatusCode)
	assert.Equal(t, "application/json", restored.Header.Get("Content-Type"))
	assert.Equal(t, string(body), string(restoredBody))
}

func TestDeserializeInvalidPrefix(t *testing.T) {
	for _, payload := range []string{"", "HTTP/1.1 200 OK\r\n\r\n", "---HTTP"} {
		_, err := deserialize([]byte(payload), nil)
		assert.Error(t, err)
	}
}
