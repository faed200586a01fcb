package ports

import (
	"context"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(sessionID, time.Now().UTC())
		s.Persona = domain.PersonaBroker
		s.StepID = "broker.options"
		s.Status = domain.StatusActive
		s.Answers["broker_name"] = domain.Text("Maria")
		s.Answers["selectedServices"] = domain.List("PR and Media services")
		s.Append(domain.SenderUser, domain.KindText, "Maria", nil)
		s.Append(domain.SenderAssistant, domain.KindOptions, "Would you like to:",
			domain.Payload(domain.OptionsPayload{Options: []string{"Just exploring"}}))

		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.Persona, loaded.Persona)
		assert.Equal(t, s.StepID, loaded.StepID)
		assert.Equal(t, s.Status, loaded.Status)
		assert.Equal(t, "Maria", loaded.Answers.Get("broker_name"))
		assert.True(t, loaded.Answers["selectedServices"].IsList())
		require.Len(t, loaded.Log, 2)
		assert.Equal(t, 2, loaded.Log[1].ID)
		assert.JSONEq(t, `{"options":["Just exploring"]}`, string(loaded.Log[1].Payload))
		assert.Equal(t, 3, loaded.NextMessageID)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Answers["broker_name"] = domain.Text("changed")

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "Maria", again.Answers.Get("broker_name"), "callers must not mutate stored sessions")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, time.Now().UTC())))
		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, time.Now().UTC())))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, time.Now().UTC())))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
