package adapter

import "context"

// ImageHost is the file-hosting collaborator: it accepts a binary blob and
// returns a durable, publicly fetchable URL.
type ImageHost interface {
	Upload(ctx context.Context, data []byte, contentType string) (publicURL string, err error)

	// Rehost fetches sourceURL and re-uploads it. Providers that fetch the
	// input themselves need this when the original reference sits behind
	// auth or a short-lived signed URL.
	Rehost(ctx context.Context, sourceURL string) (publicURL string, err error)
}
