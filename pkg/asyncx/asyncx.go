// Package asyncx provides small concurrency helpers for fire-and-forget work.
package asyncx

// Do fires fn in a goroutine and forgets it (fire-and-forget).
func Do(fn func()) {
	go fn()
}
