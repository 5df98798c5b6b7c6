package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("kubectl", OutcomeSuccess))

	ObserveCommand("kubectl", OutcomeSuccess, 150*time.Millisecond)

	after := testutil.ToFloat64(commandsTotal.WithLabelValues("kubectl", OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestObservePoll(t *testing.T) {
	okBefore := testutil.ToFloat64(pollAttempts.WithLabelValues(LoopReady, OutcomeSuccess))
	failBefore := testutil.ToFloat64(pollAttempts.WithLabelValues(LoopReady, OutcomeFailure))

	ObservePoll(LoopReady, false)
	ObservePoll(LoopReady, false)
	ObservePoll(LoopReady, true)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(pollAttempts.WithLabelValues(LoopReady, OutcomeSuccess)))
	assert.Equal(t, failBefore+2, testutil.ToFloat64(pollAttempts.WithLabelValues(LoopReady, OutcomeFailure)))
}

func TestActiveForwardsGauge(t *testing.T) {
	before := testutil.ToFloat64(activeForwards)
	ForwardStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(activeForwards))
	ForwardStopped()
	assert.Equal(t, before, testutil.ToFloat64(activeForwards))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCommand("k3d", OutcomeFailure, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "kubetestenv_commands_total"), "missing commands_total in output")
	assert.Contains(t, body, `binary="k3d"`)
}
