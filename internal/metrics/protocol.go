package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Protocol-level Prometheus metrics. Standalone package to avoid import
// cycles between the controllers and the HTTP server package.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Tokens emitidos por grant type",
	}, []string{"grant_type"})

	GrantRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grant_rejections_total",
		Help: "Requests de token rechazadas por error de protocolo",
	}, []string{"grant_type"})

	RefreshReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_reuse_detected_total",
		Help: "Detecciones de reuso de refresh token (cadena revocada)",
	})
)

// RegisterProtocol registers the protocol metrics on the given registry
// (or default if nil).
func RegisterProtocol(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokensIssued, GrantRejections, RefreshReuseDetected} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
