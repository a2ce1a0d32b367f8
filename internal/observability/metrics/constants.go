// Package metrics defines the Prometheus collectors of the service.
package metrics

const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
)

// Histogram bucket parameters.
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2.0
	BucketCount12  = 12
	BucketCount16  = 16
)
