package obs

import "time"

type RequestContext struct {
	RequestID        string
	Method           string
	TargetHost       string
	TargetPath       string
	Scope            string
	RangeSpec        string
	Status           int
	Duration         time.Duration
	UpstreamDuration time.Duration
	BytesOut         int64
	ErrorCategory    string
	CacheStatus      string
	UserAgent        string
	RemoteAddr       string
}
