package ops

import "encoding/json"

// MemoryStats reports the resource usage of the project on the server.
type MemoryStats struct {
	UsedBytes  int64           `json:"usedBytes"`
	TotalBytes int64           `json:"totalBytes"`
	Resources  json.RawMessage `json:"resources,omitempty"`
}

// ThrottleRule is a leaky-bucket rule applied by the service to inbound
// traffic of one method. Capacity is in bytes, DrainRate in bytes per second.
type ThrottleRule struct {
	Capacity  int64 `json:"capacity"`
	DrainRate int64 `json:"drainRate"`
}

// MethodThrottle reports the throttle counters for one method since the
// rule was installed.
type MethodThrottle struct {
	Inserted int64 `json:"inserted"`
	Rejected int64 `json:"rejected"`
}

// ThrottleState maps method names onto their throttle counters.
type ThrottleState map[string]MethodThrottle
