package service_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingService_PrunesExpiredRevocations(t *testing.T) {
	denylist := revocation.NewMemory()
	require.NoError(t, denylist.Revoke(t.Context(), "short", time.Now().Add(50*time.Millisecond)))
	require.NoError(t, denylist.Revoke(t.Context(), "long", time.Now().Add(time.Hour)))

	hk := service.NewHousekeepingService(denylist, slog.New(slog.DiscardHandler), 10*time.Millisecond)
	hk.Start()
	defer hk.Stop()

	assert.Eventually(t, func() bool { return denylist.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	revoked, err := denylist.IsRevoked(t.Context(), "long")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestHousekeepingService_StopIsPrompt(t *testing.T) {
	hk := service.NewHousekeepingService(revocation.NewMemory(), slog.New(slog.DiscardHandler), time.Hour)
	hk.Start()

	done := make(chan struct{})
	go func() {
		hk.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
