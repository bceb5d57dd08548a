package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCycle(t *testing.T) {
	before := testutil.ToFloat64(CyclesTotal.WithLabelValues("done"))
	ObserveCycle("done", 3, 2*time.Second)
	require.InDelta(t, before+1, testutil.ToFloat64(CyclesTotal.WithLabelValues("done")), 0.001)
}

func TestObserveRejection(t *testing.T) {
	before := testutil.ToFloat64(CandidatesRejected.WithLabelValues("title too short"))
	ObserveRejection("title too short", 2)
	require.InDelta(t, before+2, testutil.ToFloat64(CandidatesRejected.WithLabelValues("title too short")), 0.001)
}

func TestObservePublish(t *testing.T) {
	at := time.Unix(1700000000, 0)
	okBefore := testutil.ToFloat64(PostsPublished.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(PostsPublished.WithLabelValues("error"))

	ObservePublish(nil, at)
	ObservePublish(errors.New("boom"), at.Add(time.Hour))

	require.InDelta(t, okBefore+1, testutil.ToFloat64(PostsPublished.WithLabelValues("ok")), 0.001)
	require.InDelta(t, errBefore+1, testutil.ToFloat64(PostsPublished.WithLabelValues("error")), 0.001)
	require.InDelta(t, float64(at.Unix()), testutil.ToFloat64(LastPostTimestamp), 0.001)
}
