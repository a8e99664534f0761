package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
}

// Domain counters for the license lifecycle. Registered alongside the HTTP
// metrics and served from the same listener.
var (
	RegistrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "licensing",
		Name:      "registrations_total",
		Help:      "Number of license registrations accepted.",
	})
	ActivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "licensing",
		Name:      "activations_total",
		Help:      "Number of successful license activations, partitioned by plan.",
	}, []string{"plan"})
	LicenseChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "licensing",
		Name:      "license_checks_total",
		Help:      "Number of client license check-ins.",
	})
	SweptLicensesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "licensing",
		Name:      "swept_licenses_total",
		Help:      "Number of licenses transitioned to expired by the sweep.",
	})
)

func domainCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		RegistrationsTotal,
		ActivationsTotal,
		LicenseChecksTotal,
		SweptLicensesTotal,
	}
}
