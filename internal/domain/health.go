package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// RateMetrics is returned by GET /v1/metrics/rates.
type RateMetrics struct {
	LiveSnapshots    int64   `json:"liveSnapshots"`
	CachedSnapshots  int64   `json:"cachedSnapshots"`
	StaticSnapshots  int64   `json:"staticSnapshots"`
	FallbackRate     float64 `json:"fallbackRate"`
	MissingRates     int64   `json:"missingRates"`
	SkippedAccounts  int64   `json:"skippedAccounts"`
	RateCacheHitRate float64 `json:"rateCacheHitRate"`
	ProviderErrors   int64   `json:"providerErrors"`
	Period           string  `json:"period"`
}
