package utils

// EventCacheKey is the redis key for a single resolved event record.
func EventCacheKey(id string) string {
	return "events:id:v1:" + id
}
