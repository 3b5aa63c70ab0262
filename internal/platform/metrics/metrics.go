package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 投票操作的结果标签
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

/*
PollMetrics 记录投票服务每个操作的次数和耗时。

- Operations: 按 operation 和 outcome 分组的计数器，可以直接看出
  冲突、校验失败和未找到各占多少。
- Duration: 按 operation 分组的直方图，只关心数据库往返的耗时分布。

所有方法对 nil 接收者安全，测试和未启用指标时可以直接传 nil。
*/
type PollMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewPollMetrics 在给定的注册器上创建并注册指标
func NewPollMetrics(reg prometheus.Registerer, namespace string) *PollMetrics {
	factory := promauto.With(reg)
	return &PollMetrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "operations_total",
				Help:      "Total number of poll service operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "operation_duration_seconds",
				Help:      "Histogram of poll service operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms ~ 2s
			},
			[]string{"operation"},
		),
	}
}

// Observe 记录一次操作
func (m *PollMetrics) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
