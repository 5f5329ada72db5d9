package client

import "errors"

var (
	// ErrMatchNotFound indicates the server does not know the match.
	ErrMatchNotFound = errors.New("client: match not found")

	// ErrOffline indicates a delivery attempt could not reach the server.
	ErrOffline = errors.New("client: server unreachable")
)
