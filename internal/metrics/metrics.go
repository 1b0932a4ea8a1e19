package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	BidsAccepted   prometheus.Counter
	BidsRejected   *prometheus.CounterVec
	AuctionsClosed prometheus.Counter
	SchedulerTicks prometheus.Counter
}

// New registers and returns the service collectors.
func New() *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auctionhouse",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		BidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "bids_accepted_total",
			Help:      "Total number of accepted bids.",
		}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "bids_rejected_total",
			Help:      "Total number of rejected bids by reason.",
		}, []string{"reason"}),
		AuctionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "auctions_closed_total",
			Help:      "Total number of closed auctions.",
		}),
		SchedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "scheduler_ticks_total",
			Help:      "Total number of scheduler ticks.",
		}),
	}

	prometheus.MustRegister(
		m.Requests, m.LatencyMS, m.BidsAccepted, m.BidsRejected, m.AuctionsClosed, m.SchedulerTicks)
	return m
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
