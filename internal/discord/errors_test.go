package discord_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/disgoorg/disgo/rest"
	"github.com/stretchr/testify/assert"
	"github.com/vexlio/doorkeep/internal/discord"
)

func TestClassifyRestError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		message string
		want    error
	}{
		{
			name:    "missing access",
			code:    50001,
			message: "Missing Access",
			want:    discord.ErrMissingAccess,
		},
		{
			name:    "missing permissions",
			code:    50013,
			message: "Missing Permissions",
			want:    discord.ErrMissingAccess,
		},
		{
			name:    "unknown guild",
			code:    10004,
			message: "Unknown Guild",
			want:    discord.ErrUnknownGuild,
		},
		{
			name:    "unknown invite",
			code:    10006,
			message: "Unknown Invite",
			want:    discord.ErrUnknownInvite,
		},
		{
			name:    "unknown member",
			code:    10007,
			message: "Unknown Member",
			want:    discord.ErrUnknownMember,
		},
		{
			name:    "unknown user",
			code:    10013,
			message: "Unknown User",
			want:    discord.ErrUnknownMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			restErr := &rest.Error{
				Code:    rest.JSONErrorCode(tt.code),
				Message: tt.message,
			}

			got := discord.ClassifyRestError(fmt.Errorf("request failed: %w", restErr))
			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.message)
		})
	}
}

func TestClassifyRestErrorPassthrough(t *testing.T) {
	t.Parallel()

	// Unrecognized codes stay as-is so callers treat them as transient.
	restErr := &rest.Error{Code: 40001, Message: "Unauthorized"}
	assert.Equal(t, error(restErr), discord.ClassifyRestError(restErr))

	// Non-REST errors pass through untouched.
	plain := errors.New("connection reset")
	assert.Equal(t, plain, discord.ClassifyRestError(plain))
}
