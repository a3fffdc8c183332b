package camclient

import (
	"log/slog"
	"net/http"
)

type options struct {
	token       string
	logger      *slog.Logger
	httpClient  *http.Client
	eventBuffer int
}

// Option configures a Client.
type Option func(*options)

// WithToken sets the bearer token sent on the upgrade request.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithLogger sets a custom slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient sets the client used for the WebSocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}
