package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	assert.NotNil(t, c.httpRequestsTotal)
	assert.NotNil(t, c.backendRequestsTotal)
	assert.NotNil(t, c.backendTokensUsed)
	assert.NotNil(t, c.routeDecisionsTotal)
	assert.NotNil(t, c.oauthRefreshesTotal)
}

func TestObserveHTTPRequestIncrementsCounterAndHistogram(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	c.ObserveHTTPRequest("POST", "/v1/messages", "200", 100*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestObserveBackendTokensSplitsInputAndOutput(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	c.ObserveBackendTokens("anthropic", "claude-sonnet-4-5", "sonnet", 10, 20)
	assert.Equal(t, 2, testutil.CollectAndCount(c.backendTokensUsed))
}

func TestObserveRouteDecisionLabelsMisconfigured(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	c.ObserveRouteDecision("haiku", "glm", true)
	c.ObserveRouteDecision("sonnet", "anthropic", false)
	assert.Equal(t, 2, testutil.CollectAndCount(c.routeDecisionsTotal))
}

func TestObserveOAuthRefreshTracksSuccessAndFailure(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	c.ObserveOAuthRefresh(true)
	c.ObserveOAuthRefresh(false)
	assert.Equal(t, 2, testutil.CollectAndCount(c.oauthRefreshesTotal))
}
