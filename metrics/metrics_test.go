package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/protocol"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.Observe("market.buy", time.Now(), nil)
	r.Observe("market.buy", time.Now(), fmt.Errorf("wrap: %w", protocol.ErrNotActive))
	r.Observe("market.buy", time.Now(), errors.New("disk"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("market.buy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("market.buy", "NotActive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("market.buy", "error")))
}

func TestSettled(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	r.Settled("fee", 4_485_000)
	r.Settled("fee", 0)
	assert.Equal(t, 4_485_000.0, testutil.ToFloat64(r.settled.WithLabelValues("fee")))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Observe("x", time.Now(), nil)
		r.Settled("x", 1)
	})
}

func TestDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
