package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// register adds col to reg, returning the already-registered collector of
// the same type when an identical one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	var are prometheus.AlreadyRegisteredError
	if err := reg.Register(col); err != nil {
		if !errors.As(err, &are) {
			return col, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return col, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return existing, nil
	}
	return col, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, c, name)
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return register(reg, g, name)
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, h, name)
}

func registerCounterVec(reg prometheus.Registerer, v *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, v, name)
}

func registerGaugeVec(reg prometheus.Registerer, v *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	return register(reg, v, name)
}

func registerHistogramVec(reg prometheus.Registerer, v *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, v, name)
}
