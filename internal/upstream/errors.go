package upstream

import "errors"

var (
	ErrInvalidURL    = errors.New("invalid upstream url")
	ErrUnavailable   = errors.New("upstream unavailable")
	ErrEmptyResponse = errors.New("upstream returned empty response")
	ErrTimeout       = errors.New("upstream request timed out")
)

// InvalidDocumentError reports a full-file fetch whose body does not carry
// the PDF signature. Body holds the decoded text when the response is small
// enough to be an upstream error page.
type InvalidDocumentError struct {
	URL  string
	Body string
}

func (e *InvalidDocumentError) Error() string {
	if e.Body == "" {
		return "upstream content is not a valid PDF"
	}
	return "upstream content is not a valid PDF: " + e.Body
}
