/*
Package ports defines the driven ports (interfaces) of the leadflow engine.

These interfaces decouple the flow engine from its collaborators, so that
sessions, submissions, the fallback agent and document indexing can be
backed by different implementations.

# Key Interfaces

  - SessionStore: persists and loads sessions (memory, file, Redis).
  - DistributedLocker: serializes access to a session across replicas.
  - SubmissionSink: durable append-only destination for lead data.
  - DialogAgent: streamed free-text completion for unscripted turns.
  - DocumentIndexer: turns uploaded documents into retrievable chunks.
  - FlowLoader: produces the flow table.
*/
package ports
