package cache

type Stats struct {
	Entries      int   `json:"size"`
	SizeBytes    int64 `json:"memoryUsage"`
	MaxSizeBytes int64 `json:"maxSize"`
}

// LookupStatus tells a lookup miss caused by absence apart from one caused
// by TTL expiry.
type LookupStatus string

const (
	LookupHit     LookupStatus = "hit"
	LookupMiss    LookupStatus = "miss"
	LookupExpired LookupStatus = "expired"
)

type Store interface {
	Get(key string) ([]byte, bool)
	Lookup(key string) ([]byte, LookupStatus)
	Set(key string, data []byte)
	Delete(key string)
	Stats() Stats
}
