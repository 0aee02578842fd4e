package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qxautoml_debuglog_build_info",
		Help: "Build information of the debug log reader",
	}, []string{"version", "commit", "date"})

	Lines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_lines_total", Help: "Total lines echoed from the serial port.",
	})
	Bytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_bytes_total", Help: "Total bytes echoed from the serial port.",
	})
	ReadTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_read_timeouts_total", Help: "Reads that returned no data within the timeout.",
	})
	ReadErrs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_read_errors_total", Help: "Total serial read errors.",
	})
	OpenErrs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_open_errors_total", Help: "Total failures to open the serial port.",
	})
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qxautoml_debuglog_reconnects_total", Help: "Total reconnect attempts.",
	})
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qxautoml_debuglog_connected", Help: "1 while the serial port is open.",
	})
)
