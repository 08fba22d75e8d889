package jenkins

import "fmt"

// RequestError reports a transport level failure: the request could not be
// built, sent, or its body could not be read.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("HTTP request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError reports a response body that does not match the expected JSON schema
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("JSON parsing failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
