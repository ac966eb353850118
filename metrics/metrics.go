// metrics.go - Prometheus instrumentation for the message channel stack.
// Copyright (C) 2026  the duskchan authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics instruments wire.Channel and readpump.Pump with
// Prometheus counters and gauges. A nil *Collector is valid and every
// method on it no-ops, so library code can take a *Collector without
// forcing callers to construct one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// reservedTypeCode reports whether a type-code belongs to the
// handshake/secure-channel layers rather than the application.
func reservedTypeCode(typeCode uint64) bool {
	switch typeCode {
	case 4391, 4392, 7919:
		return true
	default:
		return false
	}
}

func typeCodeBucket(typeCode uint64) string {
	if reservedTypeCode(typeCode) {
		return "reserved"
	}
	return "application"
}

// Collector exposes duskchan's channel and read-pump metrics under the
// given Prometheus registerer.
type Collector struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	protocolErrors   prometheus.Counter
	readPumpPending  prometheus.Gauge
}

// NewCollector registers duskchan's metrics with reg and returns a
// ready Collector.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duskchan_messages_sent_total",
			Help: "Messages sent on a wire.Channel, by type-code bucket.",
		}, []string{"bucket"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duskchan_messages_received_total",
			Help: "Messages received on a wire.Channel, by type-code bucket.",
		}, []string{"bucket"}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duskchan_protocol_errors_total",
			Help: "Frames rejected by a wire.Channel's receive loop as malformed.",
		}),
		readPumpPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "duskchan_readpump_pending",
			Help: "Depth of a readpump.Pump's pending request queue.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.messagesSent, c.messagesReceived, c.protocolErrors, c.readPumpPending,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MessageSent implements wire.Metrics.
func (c *Collector) MessageSent(typeCode uint64) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues(typeCodeBucket(typeCode)).Inc()
}

// MessageReceived implements wire.Metrics.
func (c *Collector) MessageReceived(typeCode uint64) {
	if c == nil {
		return
	}
	c.messagesReceived.WithLabelValues(typeCodeBucket(typeCode)).Inc()
}

// ProtocolError implements wire.Metrics.
func (c *Collector) ProtocolError() {
	if c == nil {
		return
	}
	c.protocolErrors.Inc()
}

// ReadPumpPending implements wire.Metrics.
func (c *Collector) ReadPumpPending(depth int) {
	if c == nil {
		return
	}
	c.readPumpPending.Set(float64(depth))
}
