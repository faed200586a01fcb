/*
Package domain contains the core models of the leadflow conversation engine.

It defines the entities the flow engine works with: sessions, their
conversation log and answer store, the steps of the flow table and the
records handed to submission sinks. The package has no I/O and no
persistence; adapters live elsewhere.

# Key Entities

  - Session: the explicit conversation context (persona, current step, answers, log).
  - Message: one entry of the append-only conversation log.
  - Step: a node of the flow table (prompt, input mode, successors, actions).
  - Flow: the table itself, with one entry step per persona.
  - Submission: a finalized answer snapshot delivered to a sink.
*/
package domain
