// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollectorCountsByTypeCodeBucket(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.MessageSent(4391) // reserved (RSA_TYPE)
	c.MessageSent(100)  // application
	c.MessageReceived(100)
	c.ProtocolError()
	c.ReadPumpPending(3)

	require.Equal(t, float64(1), counterValue(t, c.messagesSent.WithLabelValues("reserved")))
	require.Equal(t, float64(1), counterValue(t, c.messagesSent.WithLabelValues("application")))
	require.Equal(t, float64(1), counterValue(t, c.messagesReceived.WithLabelValues("application")))
	require.Equal(t, float64(1), counterValue(t, c.protocolErrors))
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.MessageSent(1)
		c.MessageReceived(1)
		c.ProtocolError()
		c.ReadPumpPending(1)
	})
}
