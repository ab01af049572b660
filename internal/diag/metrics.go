package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 进程级指标（prometheus）：
// - rtkbatch_op_total{comp,stage,result}
// - rtkbatch_error_total{comp,code}
// - rtkbatch_op_duration_ms{comp,stage}
// - rtkbatch_dispatch_inflight

const metricsNamespace = "rtkbatch"

// Registry 为本进程私有注册表；不混入默认的 Go 运行时指标。
var Registry = prometheus.NewRegistry()

var (
	opTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "op_total",
		Help:      "Operations by component, stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "error_total",
		Help:      "Errors by component and classification code.",
	}, []string{"comp", "code"})

	opDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "op_duration_ms",
		Help:      "Stage duration in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"comp", "stage"})

	inflight = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_inflight",
		Help:      "Solver processes currently running.",
	})
)

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) { opTotal.WithLabelValues(comp, stage, result).Inc() }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { errorTotal.WithLabelValues(comp, code).Inc() }

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// Inflight 调整运行中的求解器进程数。
func Inflight(delta int) { inflight.Add(float64(delta)) }

// WriteMetrics 以 textfile 格式写出当前指标（node_exporter textfile collector 可读）。
func WriteMetrics(path string) error { return prometheus.WriteToTextfile(path, Registry) }
