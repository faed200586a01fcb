// Package runtime implements the conversation engine: persona selection,
// the broker sub-flow, table-driven steps, pacing timers, fallback agent
// turns and asynchronous submissions.
package runtime
