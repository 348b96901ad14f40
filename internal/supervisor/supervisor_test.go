package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

func TestStartIsNoOpWhenDisabled(t *testing.T) {
	s := New(config.SubprocessConfig{Enabled: false}, zap.NewNop())
	err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s.cmd)
}

func TestStopIsNoOpWithoutARunningProcess(t *testing.T) {
	s := New(config.SubprocessConfig{Enabled: true, Port: 9999}, zap.NewNop())
	assert.NotPanics(t, func() { s.Stop() })
}

func TestWaitHealthyReturnsTrueOnFirstOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port := portFromURL(t, srv.URL)
	s := New(config.SubprocessConfig{Enabled: true, Port: port}, zap.NewNop())
	s.cmd = &exec.Cmd{}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.True(t, s.waitHealthy(ctx))
}

func TestWaitHealthyReturnsFalseWhenContextExpires(t *testing.T) {
	s := New(config.SubprocessConfig{Enabled: true, Port: 1}, zap.NewNop())
	s.cmd = &exec.Cmd{}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.False(t, s.waitHealthy(ctx))
}

func TestNpxCandidatesAlwaysIncludesPlainNpx(t *testing.T) {
	assert.Contains(t, npxCandidates(), "npx")
}

func portFromURL(t *testing.T, rawURL string) int {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return port
}
