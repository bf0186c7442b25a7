package metricsvc

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.ObserveFlow("academic_qa", "ok", time.Second)
	rec.ObserveFlow("academic_qa", "ok", time.Second)
	rec.ObserveFlow("academic_qa", "invalid", time.Second)
	rec.AddTokens("academic_qa", 10, 5)
	rec.ObserveHTTP("GET", "/api/users/me", 200, time.Millisecond)
	rec.IncThrottled("/api/assistant/qa")
	rec.ObserveCache("marksheet", true)
	rec.ObserveCache("marksheet", false)
	rec.ObserveCache("marksheet", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.flowsTotal.WithLabelValues("academic_qa", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.flowsTotal.WithLabelValues("academic_qa", "invalid")))
	assert.Equal(t, 10.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("academic_qa", "prompt")))
	assert.Equal(t, 5.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("academic_qa", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.httpTotal.WithLabelValues("GET", "/api/users/me", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.throttleTotal.WithLabelValues("/api/assistant/qa")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.cacheTotal.WithLabelValues("marksheet", "miss")))

	// a second recorder on another registry does not collide
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
