package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeSizeHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "12345")
	}))
	defer server.Close()

	size, err := ProbeSize(context.Background(), server.Client(), server.URL, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), size)
}

func TestProbeSizeGetFallback(t *testing.T) {
	var heads, gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.Header().Set("Content-Length", "777")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, strings.Repeat("x", 777))
	}))
	defer server.Close()

	size, err := ProbeSize(context.Background(), server.Client(), server.URL, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(777), size)
	assert.Equal(t, int32(1), heads.Load())
	assert.Equal(t, int32(1), gets.Load())
}

func TestProbeSizeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := ProbeSize(context.Background(), server.Client(), server.URL, DefaultConfig())
	require.Error(t, err)
	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindStatus, terr.Kind)
	assert.Equal(t, http.StatusNotFound, terr.Status)
}

func TestProbeSizeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
	}))
	defer server.Close()

	_, err := ProbeSize(ctx, server.Client(), server.URL, DefaultConfig())
	require.Error(t, err)
	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindCancelled, terr.Kind)
	assert.True(t, errors.Is(err, context.Canceled))
}
