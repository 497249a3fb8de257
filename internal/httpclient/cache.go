package httpclient

import (
	"fmt"
	"sync"
	"time"
)

// clientCache memoizes clients per configuration fingerprint for the lifetime
// of the process, so every component asking for the same timeout shares one
// transport and its connection pool.
var clientCache sync.Map

// ClientFor returns the process-wide client for the given timeout, creating
// it on first use.
func ClientFor(timeout time.Duration) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	fingerprint := fmt.Sprintf("timeout=%s", timeout)

	if cached, ok := clientCache.Load(fingerprint); ok {
		return cached.(Client)
	}

	// LoadOrStore keeps the first stored client if two callers race here.
	client, _ := clientCache.LoadOrStore(fingerprint, NewDefaultClient(timeout))
	return client.(Client)
}
