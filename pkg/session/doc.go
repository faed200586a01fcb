/*
Package session serializes access to conversation sessions.

It pairs per-session in-process locks (reference counted so idle sessions
leave no residue) with an optional distributed lock, and exposes Update as
the single load, mutate and save boundary used by the flow engine. Every
successful Update is reported to a change listener as a SessionDiff.
*/
package session
