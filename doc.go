/*
Package leadflow is a lead-qualification conversation engine for marketing websites.

Visitors pick a persona (Broker, Real Estate Developer, Applicant, Vendor/Partner
or Other) and are walked through a scripted flow that collects their contact
details and interests. Input the flow cannot handle is answered by a streamed
language-model agent. Finalized answers are delivered to a submission sink.

# Concept

The flow is a static table of steps. Each step has a prompt, an input mode
(text, choice, checklist, form or none), successors, side-effect actions and a
terminal flag. Sessions are plain values loaded and saved through a
SessionStore under a per-session lock, so the same engine runs embedded in a
terminal, behind the HTTP adapter, or across several replicas sharing Redis.

# Usage

	eng, err := leadflow.New(
		leadflow.WithSink(csvsink.New("data")),
		leadflow.WithAgent(openai.New(openai.Config{APIKey: key})),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, _ := eng.Start(ctx, "")
	s, _ = eng.SelectPersona(ctx, s.ID, "Broker")
	s, _ = eng.Say(ctx, s.ID, "Maria")
	eng.Wait()

The HTTP adapter in pkg/adapters/http exposes the same operations as a JSON
API with server-sent events for live updates.
*/
package leadflow
