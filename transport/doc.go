// Package transport provides the HTTP seam the agent client is built on.
//
// The central type is Func, a single-function transport: one call, one HTTP
// round trip. Production code obtains a Func from New; tests substitute a
// closure that returns canned responses or errors.
//
//	send, err := transport.New(transport.Config{})
//	resp, err := send(ctx, transport.Request{
//	    Method: http.MethodGet,
//	    URL:    "http://localhost:8500/v1/agent/self",
//	})
//
// Errors are classified as timeout, connection, or other via *Error.
package transport
