package gateway

import (
	"context"
)

// SendRequest is a fully resolved outbound send. The caller has already
// picked the connection, so the request carries the credential material it
// needs and nothing else has to be looked up at send time.
type SendRequest struct {
	PhoneNumberID string
	AccessToken   string
	To            string

	// Kind is "text" or "template".
	Kind             string
	Text             string
	TemplateName     string
	TemplateLanguage string
	TemplateParams   []string
}

// SendResult reports the gateway's verdict on one send attempt. OK with a
// MessageID means the platform accepted the message; !OK carries the error
// surface so callers can decide between retry and terminal failure.
type SendResult struct {
	OK           bool
	MessageID    string
	ErrorMessage string
	HTTPStatus   int
	RawResponse  []byte
}

// Client talks to the WhatsApp Cloud API.
type Client interface {
	// SendMessage performs one send attempt. A non-nil error means the
	// attempt could not be judged (transport failure, timeout); a nil error
	// with !result.OK means the platform rejected the message.
	SendMessage(ctx context.Context, req SendRequest) (SendResult, error)
	// FetchMediaURL resolves a media id to a short-lived download URL.
	FetchMediaURL(ctx context.Context, accessToken, mediaID string) (string, error)
}

// ConnectionResolver resolves workspace credentials for outbound sends.
type ConnectionResolver interface {
	// Resolve returns the phone number id and access token for the
	// workspace's active connection. apperrors.ErrNotFound when the
	// workspace has no usable connection or the token is missing.
	Resolve(ctx context.Context, workspaceID string) (phoneNumberID, accessToken string, err error)
}
