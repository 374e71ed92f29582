// Package metrics exposes a registry's live sessions as Prometheus
// metrics. It is grounded on the TCPInfoCollector pattern (a
// prometheus.Collector backed by a mutex-guarded map, scraped on demand
// rather than pushed) from the sockstats exporter package, adapted from
// per-conn TCP info fields to the session package's Stats counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cs144/rely/registry"
)

type statField struct {
	desc    *prometheus.Desc
	valueOf func(registry.SessionStats) uint64
}

// Collector implements prometheus.Collector over a Registry's live
// sessions. Register it with a prometheus.Registry; each Collect call
// snapshots the session table fresh, so there is no polling loop or state
// to keep in sync between scrapes.
type Collector struct {
	reg    *registry.Registry
	fields []statField
	count  *prometheus.Desc
}

// NewCollector builds a Collector over reg. namespace is used as the
// Prometheus metric namespace (e.g. "rely").
func NewCollector(reg *registry.Registry, namespace string) *Collector {
	labels := []string{"peer"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "session", name), help, labels, nil)
	}
	return &Collector{
		reg: reg,
		fields: []statField{
			{desc("sent_total", "data frames sent, including retransmissions"), func(s registry.SessionStats) uint64 { return s.Stats.Sent }},
			{desc("retransmitted_total", "data frames retransmitted after timeout"), func(s registry.SessionStats) uint64 { return s.Stats.Retransmitted }},
			{desc("acked_total", "data frames cumulatively acknowledged"), func(s registry.SessionStats) uint64 { return s.Stats.Acked }},
			{desc("dropped_malformed_total", "inbound datagrams dropped for failing frame validation"), func(s registry.SessionStats) uint64 { return s.Stats.DroppedMalformed }},
			{desc("dropped_protocol_violation_total", "inbound acks dropped for acknowledging unsent data"), func(s registry.SessionStats) uint64 { return s.Stats.DroppedProtocolViolation }},
			{desc("dropped_duplicate_total", "inbound data frames dropped as duplicate or out of window"), func(s registry.SessionStats) uint64 { return s.Stats.DroppedDuplicateOrOOW }},
		},
		count: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "sessions_active"), "number of live sessions", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count
	for _, f := range c.fields {
		ch <- f.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.count, prometheus.GaugeValue, float64(len(snap)))
	for _, s := range snap {
		peer := s.Peer.String()
		for _, f := range c.fields {
			ch <- prometheus.MustNewConstMetric(f.desc, prometheus.CounterValue, float64(f.valueOf(s)), peer)
		}
	}
}
