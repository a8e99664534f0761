package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prometheus exposes HTTP request metrics for a gin engine plus the domain
// collectors defined in metrics.go, served from a dedicated listener.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	registry   *prometheus.Registry
	listenAddr string
	log        *zap.SugaredLogger

	// URLLabelFn maps a request to the url label; defaults to the matched
	// route pattern so label cardinality stays bounded.
	URLLabelFn func(c *gin.Context) string
}

type NewPrometheusOptions struct {
	URLLabelFn func(c *gin.Context) string
	Logger     *zap.SugaredLogger
}

func NewPrometheus(opts NewPrometheusOptions) *Prometheus {
	registry := prometheus.NewRegistry()

	reqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "req_total",
		Help: "How many HTTP requests processed, partitioned by status code, method and url.",
	}, []string{"code", "method", "url"})
	reqDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "req_dur_ms",
		Help:    "The HTTP request latencies in milliseconds.",
		Buckets: HistogramBuckets,
	}, []string{"code", "method", "url"})

	registry.MustRegister(reqCnt, reqDur)
	for _, c := range domainCollectors() {
		registry.MustRegister(c)
	}

	p := &Prometheus{
		reqCnt:     reqCnt,
		reqDur:     reqDur,
		registry:   registry,
		log:        opts.Logger,
		URLLabelFn: opts.URLLabelFn,
	}
	if p.URLLabelFn == nil {
		p.URLLabelFn = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return c.Request.URL.Path
		}
	}
	return p
}

func (p *Prometheus) SetListenAddress(addr string) {
	p.listenAddr = addr
}

// Use attaches the middleware to the engine and starts the metrics listener
// when a listen address was configured.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.handlerFunc())
	if p.listenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(p.listenAddr, mux); err != nil && p.log != nil {
				p.log.Errorf("metrics listener error: %v", err)
			}
		}()
	}
}

func (p *Prometheus) handlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.URLLabelFn(c)
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(float64(time.Since(start).Milliseconds()))
	}
}
