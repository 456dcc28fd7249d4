// Package avatar is the object-store boundary for avatar binaries. The auth
// core only needs to turn an uploaded image into a stable {public_id, url}
// reference and to discard a replaced object.
package avatar

import "context"

// Object is the stored reference persisted on the identity record.
type Object struct {
	PublicID string
	URL      string
}

// Store uploads and removes avatar objects.
type Store interface {
	Upload(ctx context.Context, userID, contentType string, data []byte) (Object, error)
	Remove(ctx context.Context, publicID string) error
}
