package metrics

import (
	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "social_contract"

// Eviction kinds.
const (
	EvictedMessage = "message"
	EvictedBid     = "bid"
	EvictedQuota   = "paid_quota"
)

// Collector gathers contract metrics. The zero Collector is not usable,
// nil *Collector drops everything.
type Collector struct {
	calls     *prometheus.CounterVec
	events    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	payouts   prometheus.Counter
	rewards   prometheus.Counter
}

// New returns collector registered in reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Number of state-changing contract calls by method and result",
		}, []string{"method", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Number of emitted notifications by name",
		}, []string{"event"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Number of entries pushed out of bounded lists by kind",
		}, []string{"kind"}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_amount_total",
			Help:      "Amount paid to endorsers of paid messages and reclaimed by authors",
		}),
		rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_amount_total",
			Help:      "Amount paid as posting rewards",
		}),
	}

	for _, col := range []prometheus.Collector{c.calls, c.events, c.evictions, c.payouts, c.rewards} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObserveCall counts finished call of the method. Failures are labeled by
// error kind.
func (c *Collector) ObserveCall(method string, err error) {
	if c == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = common.KindOf(err).String()
	}
	c.calls.WithLabelValues(method, result).Inc()
}

// Notify implements host.EventSink.
func (c *Collector) Notify(ev state.NotificationEvent) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(ev.Name).Inc()
}

// Evicted counts evicted entries of the given kind.
func (c *Collector) Evicted(kind string) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(kind).Inc()
}

// Paid adds paid message payout amount.
func (c *Collector) Paid(amount uint64) {
	if c == nil {
		return
	}
	c.payouts.Add(float64(amount))
}

// Rewarded adds posting reward amount.
func (c *Collector) Rewarded(amount uint64) {
	if c == nil {
		return
	}
	c.rewards.Add(float64(amount))
}
