package models

import "time"

// SystemMetrics is a point-in-time summary exposed by the health endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requestsTotal"`
	AverageRequestDurationMs float64           `json:"averageRequestDurationMs"`
	CacheHits                uint64            `json:"cacheHits"`
	CacheMisses              uint64            `json:"cacheMisses"`
	CacheHitRatio            float64           `json:"cacheHitRatio"`
	DBQueryCount             uint64            `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64           `json:"averageDbQueryDurationMs"`
	Transitions              map[string]uint64 `json:"transitions"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generatedAt"`
}
