package llm

import "fmt"

// UpstreamError reports a non-success response from the generative
// service. The upstream message is carried for diagnostics; the pipeline
// does not retry.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generative service error: %s", e.Message)
}
