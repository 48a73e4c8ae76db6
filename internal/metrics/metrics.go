package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	ProductsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "products_total",
			Help: "Total number of products in catalog",
		},
	)

	ProductsOutOfStock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "products_out_of_stock",
			Help: "Number of products with zero stock",
		},
	)

	CartItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cart_items_total",
			Help: "Total number of items currently held in a chat's cart",
		},
		[]string{"chat_id"},
	)

	// Chat metrics
	ChatIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_intents_total",
			Help: "Total number of classified chat intents",
		},
		[]string{"intent"},
	)

	CheckoutStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_starts_total",
			Help: "Total number of checkout flows started",
		},
	)

	CheckoutCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_completions_total",
			Help: "Total number of orders committed through checkout",
		},
	)

	InvoicesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_sent_total",
			Help: "Total number of invoice emails sent successfully",
		},
	)

	InvoicesFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_failed_total",
			Help: "Total number of invoices that exhausted their retry budget",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"query_type"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections in use",
		},
	)

)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(queryType string, duration float64) {
	DBQueriesTotal.WithLabelValues(queryType).Inc()
	DBQueryDuration.WithLabelValues(queryType).Observe(duration)
}

// UpdateProductMetrics updates product-related metrics
func UpdateProductMetrics(total, outOfStock int) {
	ProductsTotal.Set(float64(total))
	ProductsOutOfStock.Set(float64(outOfStock))
}

// RecordChatIntent records a classified intent for one chat turn.
func RecordChatIntent(intent string) {
	ChatIntentsTotal.WithLabelValues(intent).Inc()
}

// RecordCheckoutStart records a checkout flow entering ask_returning.
func RecordCheckoutStart() {
	CheckoutStartsTotal.Inc()
}

// RecordCheckoutCompletion records an order committed to the catalog.
func RecordCheckoutCompletion() {
	CheckoutCompletionsTotal.Inc()
}

// RecordInvoiceSent records a successfully delivered invoice email.
func RecordInvoiceSent() {
	InvoicesSentTotal.Inc()
}

// RecordInvoiceFailed records an invoice dispatch that exhausted its
// retry budget.
func RecordInvoiceFailed() {
	InvoicesFailedTotal.Inc()
}
