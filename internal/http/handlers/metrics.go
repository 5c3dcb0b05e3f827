package handlers

import (
	"bytes"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
)

var (
	keyVerifications       *prometheus.CounterVec
	paymentLinksCreated    *prometheus.CounterVec
	checkoutSessionsMinted prometheus.Counter
	webhookEventsReceived  *prometheus.CounterVec
)

func InitPrometheusMetrics() {
	keyVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enclose",
			Name:      "api_key_verifications_total",
			Help:      "Total API key verification attempts by result.",
		},
		[]string{"result"},
	)
	paymentLinksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enclose",
			Name:      "payment_links_created_total",
			Help:      "Total payment links created.",
		},
		[]string{"owner", "currency"},
	)
	checkoutSessionsMinted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "enclose",
			Name:      "checkout_sessions_total",
			Help:      "Total checkout sessions minted from payment links.",
		},
	)
	webhookEventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enclose",
			Name:      "webhook_events_total",
			Help:      "Total provider webhook events captured by type.",
		},
		[]string{"type"},
	)
	prometheus.MustRegister(keyVerifications, paymentLinksCreated, checkoutSessionsMinted, webhookEventsReceived)
}

// ObserveKeyVerification counts a verification attempt; result is one of
// "ok", "denied", "error".
func ObserveKeyVerification(result string) {
	if keyVerifications != nil {
		keyVerifications.WithLabelValues(result).Inc()
	}
}

func ObservePaymentLinkCreated(ownerID uint, currency string) {
	if paymentLinksCreated != nil {
		paymentLinksCreated.WithLabelValues(strconv.Itoa(int(ownerID)), currency).Inc()
	}
}

func ObserveCheckoutSession() {
	if checkoutSessionsMinted != nil {
		checkoutSessionsMinted.Inc()
	}
}

func ObserveWebhookEvent(eventType string) {
	if webhookEventsReceived != nil {
		webhookEventsReceived.WithLabelValues(eventType).Inc()
	}
}

// OwnerMetricsHandler serves the Prometheus text exposition to an
// API-key-authenticated caller, keeping only their own series for metric
// families that carry an "owner" label.
func OwnerMetricsHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}
		owner := strconv.Itoa(int(ownerID))

		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			hasOwnerLabel := false
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "owner" {
						hasOwnerLabel = true
						break
					}
				}
				if hasOwnerLabel {
					break
				}
			}

			if !hasOwnerLabel {
				filtered = append(filtered, mf)
				continue
			}

			var kept []*dto.Metric
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "owner" && l.GetValue() == owner {
						kept = append(kept, m)
						break
					}
				}
			}

			if len(kept) == 0 {
				continue
			}

			filtered = append(filtered, &dto.MetricFamily{
				Name:   mf.Name,
				Help:   mf.Help,
				Type:   mf.Type,
				Metric: kept,
			})
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
