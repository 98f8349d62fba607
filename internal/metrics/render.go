package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	renderRegisterOnce sync.Once

	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taocv",
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "模板渲染耗时分布（秒），不含缓存命中。",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taocv",
			Subsystem: "render",
			Name:      "cache_hits_total",
			Help:      "渲染缓存命中总数。",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taocv",
			Subsystem: "render",
			Name:      "cache_misses_total",
			Help:      "渲染缓存未命中总数。",
		},
	)
)

func registerRenderMetrics() {
	renderRegisterOnce.Do(func() {
		prometheus.MustRegister(renderDuration, cacheHits, cacheMisses)
	})
}

// ObserveRender 记录一次实际执行的渲染耗时。kind 为 cv/preview/empty。
func ObserveRender(kind string, elapsed time.Duration) {
	registerRenderMetrics()
	renderDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RenderCacheHit 记录一次渲染缓存命中。
func RenderCacheHit() {
	registerRenderMetrics()
	cacheHits.Inc()
}

// RenderCacheMiss 记录一次渲染缓存未命中。
func RenderCacheMiss() {
	registerRenderMetrics()
	cacheMisses.Inc()
}
