package httpx

import "net/http"

func NewMux(e Env) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.Healthz)
	mux.HandleFunc("/readyz", e.Readyz)
	mux.HandleFunc("/detect", e.Detect)
	mux.HandleFunc("/classify", e.Classify)

	return RequestLogger(MetricsMiddleware(e.Metrics)(cors(traceContext(mux))))
}
