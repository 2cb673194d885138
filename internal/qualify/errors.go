// Package qualify evaluates visitors against the ICP policy using an
// external model provider.
package qualify

import "fmt"

// ProviderError is a failed call to the model provider: transport errors,
// rate limits, provider 5xx. Transient provider errors are retried.
type ProviderError struct {
	Err        error
	StatusCode int
	Transient  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("qualify: provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("qualify: provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError is a provider reply that does not contain an extractable
// verdict. Parse errors are never retried: the reply is not going to
// change shape on a second read.
type ParseError struct {
	Output string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("qualify: unparseable reply: %s", e.Reason)
}
