package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelhub_attendance_scans_total",
		Help: "QR scan lookups by result.",
	}, []string{"result"})

	togglesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostelhub_attendance_toggles_total",
		Help: "Attendance toggle mutations.",
	})
)
