// Package metrics содержит счётчики Prometheus, отдаваемые на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConfigsIssued число успешно выданных конфигураций по имени шаблона.
	ConfigsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warpbot_configs_issued_total",
		Help: "Number of successfully issued configurations",
	}, []string{"template"})

	// QuotaRejections число отказов по квоте по виду выдачи.
	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warpbot_quota_rejections_total",
		Help: "Number of issuance requests rejected by quota",
	}, []string{"kind"})

	// BroadcastMessages число отправленных при рассылке сообщений по результату.
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warpbot_broadcast_messages_total",
		Help: "Number of broadcast deliveries by result",
	}, []string{"result"})
)
