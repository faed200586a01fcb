package runtime_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pixl-ae/leadflow/internal/runtime"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_NameCaptureIsPaced(t *testing.T) {
	f := newFixture(t)
	f.start(t, "b1")

	s := f.persona(t, "b1", "Broker")
	assert.Equal(t, runtime.BrokerAwaitingName, s.StepID)
	assert.Equal(t, "Great! Before we continue, may I have your first name?", lastText(s, domain.SenderAssistant))

	s = f.say(t, "b1", "  Maria ")
	assert.Equal(t, "Maria", s.Answers.Get("broker_name"))
	assert.Equal(t, domain.StatusThinking, s.Status)
	assert.Equal(t, domain.ExpectWait, f.engine.Expect(s).Mode)

	_, err := f.engine.Handle(f.ctx, "b1", domain.Input{Type: domain.InputText, Text: "hello?"})
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.Equal(t, 1, f.clock.Fire())
	s = f.load(t, "b1")
	assert.Equal(t, runtime.BrokerOptions, s.StepID)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.True(t, strings.HasPrefix(lastText(s, domain.SenderAssistant), "Welcome Maria to Pixl.ae!"))

	exp := f.engine.Expect(s)
	assert.Equal(t, string(domain.ModeChoice), exp.Mode)
	assert.Equal(t, []string{
		runtime.OptionScheduleCall,
		runtime.OptionDigitalKit,
		runtime.OptionPickServices,
		runtime.OptionRegister,
		runtime.OptionExploring,
	}, exp.Options)
}

func TestBroker_NameBoundary(t *testing.T) {
	f := newFixture(t)
	f.start(t, "b2")
	f.persona(t, "b2", "Broker")

	exactly30 := strings.Repeat("a", runtime.MaxBrokerNameLength)
	s := f.say(t, "b2", exactly30)
	assert.Equal(t, exactly30, s.Answers.Get("broker_name"))
}

func TestBroker_LongReplyGoesToAgent(t *testing.T) {
	f := newFixture(t)
	f.start(t, "b3")
	f.persona(t, "b3", "Broker")

	question := "What commission structure do you offer to brokers?"
	s := f.say(t, "b3", question)
	assert.Equal(t, domain.StatusStreaming, s.Status)
	assert.Empty(t, s.Answers.Get("broker_name"))

	f.engine.Wait()
	s = f.load(t, "b3")
	assert.Equal(t, runtime.BrokerAwaitingName, s.StepID, "the step does not change")
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.Equal(t, "Hello there", lastText(s, domain.SenderAssistant))
	assert.Zero(t, f.clock.Pending())

	reqs := f.agent.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, question, reqs[0].History[len(reqs[0].History)-1].Content)

	// A short reply afterwards is still taken as the name.
	s = f.say(t, "b3", "Omar")
	assert.Equal(t, "Omar", s.Answers.Get("broker_name"))
}

func TestBroker_EveryOptionHasOneSuccessor(t *testing.T) {
	cases := map[string]string{
		runtime.OptionScheduleCall: runtime.BrokerScheduleForm,
		runtime.OptionDigitalKit:   runtime.BrokerDigitalKitForm,
		runtime.OptionPickServices: runtime.BrokerServiceForm,
		runtime.OptionRegister:     runtime.BrokerRegisterInfo,
		runtime.OptionExploring:    runtime.BrokerExploring,
	}
	for option, want := range cases {
		t.Run(option, func(t *testing.T) {
			f := newFixture(t)
			s := f.brokerAt(t, "opt", option)
			assert.Equal(t, want, s.StepID)
			assert.Equal(t, option, s.Answers.Get("broker_interest"))
		})
	}
}

func TestBroker_InformationalStepsEndTheScript(t *testing.T) {
	f := newFixture(t)
	s := f.brokerAt(t, "info", runtime.OptionExploring)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, domain.ExpectFreeform, f.engine.Expect(s).Mode)

	_, err := f.engine.Handle(f.ctx, "info", domain.Input{Type: domain.InputOption, Option: runtime.OptionDigitalKit})
	assert.ErrorIs(t, err, domain.ErrNoActiveStep)
}

func TestBroker_UnknownOption(t *testing.T) {
	f := newFixture(t)
	f.start(t, "unk")
	f.persona(t, "unk", "Broker")
	f.say(t, "unk", "Maria")
	f.clock.Fire()
	before := f.load(t, "unk")

	_, err := f.engine.Handle(f.ctx, "unk", domain.Input{Type: domain.InputOption, Option: "Schedule a call"})
	assert.ErrorIs(t, err, domain.ErrUnknownOption)

	after := f.load(t, "unk")
	assert.Equal(t, before.Log, after.Log)
	assert.Equal(t, runtime.BrokerOptions, after.StepID)
}

// Company and reach are optional; fullname, email and phone are required.
func TestBroker_ScheduleForm(t *testing.T) {
	f := newFixture(t)
	f.brokerAt(t, "sched", runtime.OptionScheduleCall)

	t.Run("invalid phone is rejected with a phone-only error", func(t *testing.T) {
		before := f.load(t, "sched")
		s, err := f.engine.Handle(f.ctx, "sched", domain.Input{
			Type:   domain.InputForm,
			Fields: contactForm("Maria Gomez", "maria@x.com", "+971 50 123"),
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, map[string]string{"phone": "Phone must be at least 6 digits."}, verr.Fields)
		assert.Equal(t, verr.Fields, s.FormErrors)
		assert.Equal(t, runtime.BrokerScheduleForm, s.StepID)
		assert.Equal(t, before.Log, s.Log, "no log entry")
		assert.Equal(t, before.Answers, s.Answers, "no answer mutation")
		assert.Equal(t, verr.Fields, f.engine.Expect(s).Errors)

		f.engine.Wait()
		assert.Empty(t, f.sink.Submissions())
	})

	t.Run("documented submission is accepted", func(t *testing.T) {
		s, err := f.engine.Handle(f.ctx, "sched", domain.Input{
			Type:   domain.InputForm,
			Fields: contactForm("Maria Gomez", "maria@x.com", "971501234567"),
		})
		require.NoError(t, err)
		assert.Equal(t, runtime.BrokerSubmitted, s.StepID)
		assert.Equal(t, domain.StatusCompleted, s.Status)
		assert.Nil(t, s.FormErrors)
		assert.Contains(t, lastText(s, domain.SenderAssistant), "Thank you, Maria!")
		assert.Contains(t, lastText(s, domain.SenderAssistant), "Our team will reach out to you soon.")

		f.engine.Wait()
		subs := f.sink.Submissions()
		require.Len(t, subs, 1)
		sub := subs[0]
		assert.Equal(t, domain.SubmissionBrokerCall, sub.Kind)
		assert.Equal(t, "sched", sub.SessionID)
		assert.False(t, sub.Timestamp.IsZero())
		assert.Equal(t, map[string]domain.Value{
			"broker_name":     domain.Text("Maria"),
			"broker_interest": domain.Text(runtime.OptionScheduleCall),
			"fullname":        domain.Text("Maria Gomez"),
			"email":           domain.Text("maria@x.com"),
			"phone":           domain.Text("971501234567"),
			"company":         domain.Text(""),
			"reach":           domain.Text(""),
		}, sub.Fields)
	})
}

func TestBroker_EachRequiredFieldBlocksAlone(t *testing.T) {
	valid := contactForm("Maria Gomez", "maria@x.com", "971501234567")
	bad := map[string]domain.Value{
		"fullname": domain.Text("M4ria"),
		"email":    domain.Text("maria@x"),
		"phone":    domain.Text(""),
	}
	for field, value := range bad {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t)
			f.brokerAt(t, "req", runtime.OptionDigitalKit)

			fields := map[string]domain.Value{}
			for k, v := range valid {
				fields[k] = v
			}
			fields[field] = value

			_, err := f.engine.Handle(f.ctx, "req", domain.Input{Type: domain.InputForm, Fields: fields})
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.NotEmpty(t, verr.Fields[field])
		})
	}
}

func TestBroker_PhoneIsValidatedRaw(t *testing.T) {
	for _, phone := range []string{" 123456", "123456 ", "\t0501234567"} {
		t.Run(phone, func(t *testing.T) {
			f := newFixture(t)
			f.brokerAt(t, "raw", runtime.OptionScheduleCall)

			_, err := f.engine.Handle(f.ctx, "raw", domain.Input{
				Type:   domain.InputForm,
				Fields: contactForm("Maria Gomez", "maria@x.com", phone),
			})
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, map[string]string{"phone": "Phone must be at least 6 digits."}, verr.Fields)

			f.engine.Wait()
			assert.Empty(t, f.sink.Submissions())
		})
	}
}

func TestBroker_ServiceFormBudget(t *testing.T) {
	t.Run("formatted budget is accepted", func(t *testing.T) {
		f := newFixture(t)
		f.brokerAt(t, "svc", runtime.OptionPickServices)

		fields := contactForm("Maria Gomez", "maria@x.com", "971501234567")
		fields["budget"] = domain.Text("1,000,000")
		fields["selectedServices"] = domain.List(runtime.BrokerServices[0], runtime.BrokerServices[3])

		s, err := f.engine.Handle(f.ctx, "svc", domain.Input{Type: domain.InputForm, Fields: fields})
		require.NoError(t, err)
		assert.Equal(t, runtime.BrokerSubmitted, s.StepID)
		assert.Contains(t, lastText(s, domain.SenderAssistant),
			"Your selected services: "+runtime.BrokerServices[0]+"; "+runtime.BrokerServices[3])

		f.engine.Wait()
		subs := f.sink.Submissions()
		require.Len(t, subs, 1)
		assert.Equal(t, domain.SubmissionBrokerLead, subs[0].Kind)
		assert.Equal(t, "1,000,000", subs[0].Fields["budget"].String())
		assert.Equal(t, runtime.BrokerServices[0], subs[0].Fields["service_1"].String())
		assert.Equal(t, runtime.BrokerServices[3], subs[0].Fields["service_2"].String())
		assert.True(t, subs[0].Fields["selectedServices"].IsList())
	})

	t.Run("non-numeric budget is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.brokerAt(t, "svc", runtime.OptionPickServices)

		fields := contactForm("Maria Gomez", "maria@x.com", "971501234567")
		fields["budget"] = domain.Text("abc")

		_, err := f.engine.Handle(f.ctx, "svc", domain.Input{Type: domain.InputForm, Fields: fields})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, map[string]string{"budget": "Budget must be a valid number."}, verr.Fields)
	})

	for _, budget := range []string{"NaN", "nan", "Inf", "-inf", "1e400"} {
		t.Run("budget "+budget+" is rejected", func(t *testing.T) {
			f := newFixture(t)
			f.brokerAt(t, "svc", runtime.OptionPickServices)

			fields := contactForm("Maria Gomez", "maria@x.com", "971501234567")
			fields["budget"] = domain.Text(budget)

			s, err := f.engine.Handle(f.ctx, "svc", domain.Input{Type: domain.InputForm, Fields: fields})
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, map[string]string{"budget": "Budget must be a valid number."}, verr.Fields)
			assert.Equal(t, runtime.BrokerServiceForm, s.StepID)

			f.engine.Wait()
			assert.Empty(t, f.sink.Submissions())
		})
	}

	t.Run("unknown service is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.brokerAt(t, "svc", runtime.OptionPickServices)

		fields := contactForm("Maria Gomez", "maria@x.com", "971501234567")
		fields["selectedServices"] = domain.List("Catering")

		_, err := f.engine.Handle(f.ctx, "svc", domain.Input{Type: domain.InputForm, Fields: fields})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "selectedServices")
	})
}

func TestBroker_SinkFailureIsNotSurfaced(t *testing.T) {
	var events []*domain.SubmissionEvent
	f := newFixture(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnSubmission: func(_ context.Context, e *domain.SubmissionEvent) { events = append(events, e) },
	}))
	f.sink.FailWith(errors.New("disk full"))
	f.brokerAt(t, "fail", runtime.OptionDigitalKit)

	s, err := f.engine.Handle(f.ctx, "fail", domain.Input{
		Type:   domain.InputForm,
		Fields: contactForm("Maria Gomez", "maria@x.com", "971501234567"),
	})
	require.NoError(t, err)
	assert.Equal(t, runtime.BrokerSubmitted, s.StepID)
	assert.Contains(t, lastText(s, domain.SenderAssistant), "curated digital kit")

	f.engine.Wait()
	require.Len(t, events, 1)
	assert.EqualError(t, events[0].Err, "disk full")
	assert.Equal(t, "Maria Gomez", f.load(t, "fail").Answers.Get("fullname"), "answers are kept")
}
