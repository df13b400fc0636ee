package chart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolHours(t *testing.T) {
	now := time.Unix(1_700_003_600, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "poolHourDatas")
		assert.Equal(t, "0xabc", req.Variables["pool"])
		assert.Equal(t, float64(1_700_000_000), req.Variables["since"])
		assert.Equal(t, float64(2), req.Variables["first"])

		_, _ = w.Write([]byte(`{"data":{"poolHourDatas":[
			{"periodStartUnix":1700000000,"open":"2000.1","high":"2010","low":"1990","close":"2005","volumeUSD":"12345.6","tvlUSD":"1000000","feesUSD":"6.17"}
		]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	c.now = func() time.Time { return now }

	points, err := c.PoolHours(context.Background(), "0xABC", 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1_700_000_000), points[0].Time)
	assert.Equal(t, "2005", points[0].Close.String())
	assert.Equal(t, "6.17", points[0].FeesUSD.String())
}

func TestPoolHoursGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"indexing error"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").PoolHours(context.Background(), "0xabc", 24)
	assert.ErrorContains(t, err, "indexing error")
}

func TestNotConfigured(t *testing.T) {
	_, err := New("", "").PoolHours(context.Background(), "0xabc", 24)
	assert.ErrorIs(t, err, ErrNotConfigured)
	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestClampHours(t *testing.T) {
	assert.Equal(t, DefaultHours, ClampHours(0))
	assert.Equal(t, 6, ClampHours(6))
	assert.Equal(t, MaxHours, ClampHours(10_000))
}
