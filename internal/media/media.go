// Package media externalises inline image and video payloads to object storage.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ResourceType tells the storage backend what kind of object is uploaded.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

var (
	// ErrInvalidPayload is returned when a payload is neither a data URL nor base64.
	ErrInvalidPayload = errors.New("invalid media payload")
	// ErrDisabled is returned by the uploader used when object storage is not configured.
	ErrDisabled = errors.New("media storage disabled")
)

// Uploader stores a raw payload and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, payload string, kind ResourceType) (string, error)
}

// IsRemoteURL reports whether the value already points at hosted media.
func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Decoded is a payload ready to be stored.
type Decoded struct {
	Data        []byte
	ContentType string
}

// Decode parses a data URL ("data:image/png;base64,...") or bare base64.
func Decode(payload string) (*Decoded, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrInvalidPayload
	}

	contentType := ""
	body := payload
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: expected base64 data url", ErrInvalidPayload)
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		body = data
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	if len(raw) == 0 {
		return nil, ErrInvalidPayload
	}
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}

	return &Decoded{Data: raw, ContentType: contentType}, nil
}

// Disabled rejects every upload. It stands in when no bucket is configured.
type Disabled struct{}

// Upload always fails with ErrDisabled.
func (Disabled) Upload(context.Context, string, ResourceType) (string, error) {
	return "", ErrDisabled
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}
