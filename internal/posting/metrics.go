package posting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "books",
		Name:      "postings_total",
		Help:      "Posting attempts by outcome",
	},
	[]string{"outcome"},
)
