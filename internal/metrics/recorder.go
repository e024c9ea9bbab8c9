// Package metrics экспортирует счётчики симуляции грунта в Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "soil"

// Recorder инкапсулирует Prometheus-метрики сессии. Нулевой указатель
// допустим: все методы становятся пустыми.
type Recorder struct {
	stamps         prometheus.Counter
	stampChanged   prometheus.Counter
	passes         prometheus.Counter
	transfers      prometheus.Counter
	extractions    prometheus.Counter
	active         prometheus.Gauge
	meshVertices   prometheus.Gauge
	meshTriangles  prometheus.Gauge
	extractSeconds prometheus.Histogram
}

// NewRecorder создаёт метрики и регистрирует их в reg.
// При reg == nil используется глобальный регистр Prometheus.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		stamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamps_total",
			Help:      "Общее число применённых штампов копания.",
		}),
		stampChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamp_changed_vertices_total",
			Help:      "Вершин, изменённых штампами.",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erosion_passes_total",
			Help:      "Выполненных проходов осыпания.",
		}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erosion_transfers_total",
			Help:      "Переносов грунта между вершинами.",
		}),
		extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mesh_extractions_total",
			Help:      "Извлечений сетки поверхности.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "erosion_active",
			Help:      "1, если симуляция осыпания активна.",
		}),
		meshVertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mesh_vertices",
			Help:      "Вершин в последней сетке.",
		}),
		meshTriangles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mesh_triangles",
			Help:      "Треугольников в последней сетке.",
		}),
		extractSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mesh_extract_seconds",
			Help:      "Длительность извлечения сетки.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}

	collectors := []prometheus.Collector{
		r.stamps, r.stampChanged, r.passes, r.transfers, r.extractions,
		r.active, r.meshVertices, r.meshTriangles, r.extractSeconds,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveStamp учитывает штамп и число изменённых вершин
func (r *Recorder) ObserveStamp(changed int) {
	if r == nil {
		return
	}
	r.stamps.Inc()
	r.stampChanged.Add(float64(changed))
}

// ObservePass учитывает проход осыпания
func (r *Recorder) ObservePass(transfers int) {
	if r == nil {
		return
	}
	r.passes.Inc()
	r.transfers.Add(float64(transfers))
}

// SetActive отражает состояние симулятора
func (r *Recorder) SetActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.active.Set(1)
	} else {
		r.active.Set(0)
	}
}

// ObserveMesh учитывает извлечение сетки
func (r *Recorder) ObserveMesh(vertices, triangles int, took time.Duration) {
	if r == nil {
		return
	}
	r.extractions.Inc()
	r.meshVertices.Set(float64(vertices))
	r.meshTriangles.Set(float64(triangles))
	r.extractSeconds.Observe(took.Seconds())
}
