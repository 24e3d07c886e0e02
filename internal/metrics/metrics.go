package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout result labels.
const (
	ResultSuccess           = "success"
	ResultEmptyCart         = "empty_cart"
	ResultProductNotFound   = "product_not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultStorageFailure    = "storage_failure"
)

// CheckoutMetrics tracks checkout outcomes and latency.
type CheckoutMetrics struct {
	Attempts      *prometheus.CounterVec
	Duration      prometheus.Histogram
	OrdersCreated prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		Attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shop_checkout_attempts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		Duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Checkout transaction duration.",
			Buckets: prometheus.DefBuckets,
		}),
		OrdersCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Orders created by successful checkouts.",
		}),
	}
}
