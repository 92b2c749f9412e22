package cache

import "fmt"

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}

// AnalysisKey addresses a cached analysis by document digest and provider.
func AnalysisKey(provider, digest string) string {
	return fmt.Sprintf("analysis:%s:%s", provider, digest)
}
