package outbox

import "errors"

var (
	// ErrNilStore indicates the outbox was constructed without a store.
	ErrNilStore = errors.New("outbox: nil store")
)
