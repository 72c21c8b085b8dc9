package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(extractRequests.WithLabelValues("text", "ok"))
	ObserveExtract("text", "ok", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(extractRequests.WithLabelValues("text", "ok")))

	before = testutil.ToFloat64(remoteCalls.WithLabelValues("openrouter", "retry", "ok"))
	ObserveRemoteCall("openrouter", "retry", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(remoteCalls.WithLabelValues("openrouter", "retry", "ok")))

	before = testutil.ToFloat64(reconcileActions.WithLabelValues("totals_inferred"))
	ObserveReconcile("totals_inferred")
	assert.Equal(t, before+1, testutil.ToFloat64(reconcileActions.WithLabelValues("totals_inferred")))

	before = testutil.ToFloat64(schemaDrift.WithLabelValues("gemini"))
	ObserveSchemaDrift("gemini")
	assert.Equal(t, before+1, testutil.ToFloat64(schemaDrift.WithLabelValues("gemini")))

	before = testutil.ToFloat64(heuristicParses)
	ObserveHeuristicParse()
	assert.Equal(t, before+1, testutil.ToFloat64(heuristicParses))

	before = testutil.ToFloat64(exports.WithLabelValues("ok"))
	ObserveExport("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(exports.WithLabelValues("ok")))
}
