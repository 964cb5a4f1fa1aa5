package tatsumaki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildID = 173184118492889089

func fixtureClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	client, err := New(Options{
		APIKey:        "secret",
		GuildID:       testGuildID,
		Endpoint:      upstream.URL + "/v1/",
		CacheDuration: time.Minute,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGetGuildMemberRanking(t *testing.T) {
	var calls atomic.Int32
	client := fixtureClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/guilds/173184118492889089/rankings/members/80351110224678912/all", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"guild_id":"173184118492889089","rank":3,"score":4521,"user_id":"80351110224678912"}`))
	})

	for i := 0; i < 2; i++ {
		ranking, err := client.GetGuildMemberRanking(context.Background(), 80351110224678912)
		require.NoError(t, err)
		assert.Equal(t, &MemberRanking{
			GuildID: testGuildID,
			Rank:    3,
			Score:   4521,
			UserID:  80351110224678912,
		}, ranking)
	}
	assert.Equal(t, int32(1), calls.Load(), "second lookup should be served from cache")
}

func TestGetGuildMemberRankingNumericIDs(t *testing.T) {
	client := fixtureClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"guild_id":173184118492889089,"rank":1,"score":10,"user_id":42}`))
	})

	ranking, err := client.GetGuildMemberRanking(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 10, ranking.Score)
}

func TestGetGuildMemberRankingErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr APIError
	}{
		{
			name:    "api error",
			status:  http.StatusNotFound,
			body:    `{"code":10013,"message":"Unknown User"}`,
			wantErr: APIError{Code: 10013, Message: "Unknown User"},
		},
		{
			name:    "non json error",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: APIError{Code: http.StatusBadGateway, Message: "Bad Gateway"},
		},
		{
			name:    "guild mismatch",
			status:  http.StatusOK,
			body:    `{"guild_id":"1","rank":1,"score":10,"user_id":"42"}`,
			wantErr: APIError{Code: -1, Message: "Guild ID doesn't match between request and response"},
		},
		{
			name:    "user mismatch",
			status:  http.StatusOK,
			body:    `{"guild_id":"173184118492889089","rank":1,"score":10,"user_id":"43"}`,
			wantErr: APIError{Code: -1, Message: "User ID doesn't match between request and response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fixtureClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			ranking, err := client.GetGuildMemberRanking(context.Background(), 42)
			assert.Nil(t, ranking)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.wantErr, *apiErr)
		})
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Code: 10013, Message: "Unknown User"}
	assert.Equal(t, "Unknown User (10013)", err.Error())
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"18446744073709551615","b":7}`), &v))
	assert.Equal(t, ID(18446744073709551615), v.A)
	assert.Equal(t, ID(7), v.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &v))
}
