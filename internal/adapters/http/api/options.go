package api

import "net/http"

type options struct {
	active ActiveSet
	runs   RunReader
	live   http.Handler
}

// Option configures optional routes of the Server.
type Option func(*options)

// WithActiveSet serves the active feature set on /features.
func WithActiveSet(s ActiveSet) Option {
	return func(o *options) {
		o.active = s
	}
}

// WithRuns serves the persisted feature log on /runs.
func WithRuns(r RunReader) Option {
	return func(o *options) {
		o.runs = r
	}
}

// WithLive serves the websocket live view on /ws.
func WithLive(h http.Handler) Option {
	return func(o *options) {
		o.live = h
	}
}
