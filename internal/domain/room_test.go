package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhive/quizsync/internal/domain"
)

func TestValidateRoomTypes(t *testing.T) {
	require.NoError(t, domain.ValidateRoomTypes())
}

func TestRoomTypeTTL(t *testing.T) {
	tests := []struct {
		name     string
		roomType domain.RoomType
		wantTTL  time.Duration
		wantOK   bool
	}{
		{"match", domain.RoomMatch, 5 * time.Minute, true},
		{"clan", domain.RoomClan, 30 * 24 * time.Hour, true},
		{"custom", domain.RoomCustom, time.Hour, true},
		{"unknown", domain.RoomType("lobby"), 0, false},
		{"empty", domain.RoomType(""), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := domain.RoomTypeTTL(tt.roomType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTTL, ttl)
		})
	}
}

func TestChatScopeValid(t *testing.T) {
	for _, scope := range []domain.ChatScope{
		domain.ScopeMatch, domain.ScopeClan, domain.ScopeRoom, domain.ScopePublic, domain.ScopeFriend,
	} {
		assert.True(t, scope.Valid(), string(scope))
	}
	assert.False(t, domain.ChatScope("dm").Valid())
	assert.False(t, domain.ChatScope("").Valid())
}
