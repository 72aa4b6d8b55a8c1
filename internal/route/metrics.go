package route

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeOK       = "ok"
	outcomeExcluded = "excluded"
)

var (
	quotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_route_quotes_total",
			Help: "Venue quote attempts by outcome",
		},
		[]string{"venue", "outcome"},
	)
	excludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_route_excluded_total",
			Help: "Candidates dropped from route selection by reason",
		},
		[]string{"venue", "reason"},
	)
)

func init() {
	prometheus.MustRegister(quotesTotal)
	prometheus.MustRegister(excludedTotal)
}
