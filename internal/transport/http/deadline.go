package http

import "time"

// defaultRequestTimeout is spec.md §5's per-request deadline applied
// to the whole orchestrator call.
const defaultRequestTimeout = 30 * time.Second
