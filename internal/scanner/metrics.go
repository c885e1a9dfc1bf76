package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decodeMisses counts frames that contained no readable code. Expected to be
// the overwhelming majority of frames.
var decodeMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hostelhub_scanner_decode_misses_total",
	Help: "Camera frames with no decodable QR code.",
})
