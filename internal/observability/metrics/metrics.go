package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics exposes counters/histograms for webhook and reply flows.
type ChatMetrics struct {
	inboundTotal   *prometheus.CounterVec
	messageKinds   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	calculations   *prometheus.CounterVec
	intents        *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "chat",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Chatwoot webhooks",
		}, []string{"event_type", "status"}),
		messageKinds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "chat",
			Name:      "message_kind_total",
			Help:      "Inbound messages by filter classification",
		}, []string{"kind"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "chat",
			Name:      "outbound_total",
			Help:      "Total outbound Chatwoot API calls",
		}, []string{"operation", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mortgage",
			Subsystem: "chat",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Chatwoot webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "calculator",
			Name:      "results_total",
			Help:      "Affordability calculations by binding constraint",
		}, []string{"limiting_factor", "mas_compliant"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "chat",
			Name:      "intent_total",
			Help:      "Classified inbound intents",
		}, []string{"category", "source"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgage",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM completions by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.messageKinds, m.outboundTotal, m.webhookLatency, m.calculations, m.intents, m.llmRequests)
	return m
}

func (m *ChatMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *ChatMetrics) ObserveMessageKind(kind string) {
	if m == nil {
		return
	}
	m.messageKinds.WithLabelValues(kind).Inc()
}

func (m *ChatMetrics) ObserveOutbound(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.outboundTotal.WithLabelValues(operation, status).Inc()
}

func (m *ChatMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// ObserveCalculation satisfies affordability.Observer.
func (m *ChatMetrics) ObserveCalculation(limitingFactor string, compliant bool) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(limitingFactor, strconv.FormatBool(compliant)).Inc()
}

func (m *ChatMetrics) ObserveIntent(category, source string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(category, source).Inc()
}

// ObserveLLMRequest satisfies conversation.LLMObserver.
func (m *ChatMetrics) ObserveLLMRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
}
