package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ReturnsFirstChoiceContent(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"list_tabs\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("test-model", "sk-test", WithBaseURL(srv.URL))
	out, err := c.Generate(context.Background(), []Message{
		{Role: "system", Content: "emit JSON"},
		{Role: "user", Content: "show tabs"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"list_tabs"}`, out)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestGenerate_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient("m", "bad-key", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGenerate_ServerErrorIncludesBodySnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("m", "k", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("m", "k", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "empty response")
}
