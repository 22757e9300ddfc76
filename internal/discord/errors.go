package discord

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/rest"
)

var (
	// ErrMissingAccess indicates the bot lacks access or permissions for the
	// requested guild resource.
	ErrMissingAccess = errors.New("missing access")
	// ErrUnknownGuild indicates the guild does not exist or the bot is not in it.
	ErrUnknownGuild = errors.New("unknown guild")
	// ErrUnknownInvite indicates the invite code no longer exists upstream.
	ErrUnknownInvite = errors.New("unknown invite")
	// ErrUnknownMember indicates the user is not a member of the guild.
	ErrUnknownMember = errors.New("unknown member")
)

// Discord JSON error codes the adapter classifies. Everything else is
// treated as transient by callers.
const (
	codeUnknownGuild       = 10004
	codeUnknownInvite      = 10006
	codeUnknownMember      = 10007
	codeUnknownUser        = 10013
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// ClassifyRestError maps a disgo REST failure onto the adapter's sentinel
// errors so callers can branch with errors.Is. Unrecognized errors are
// returned unchanged.
func ClassifyRestError(err error) error {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return err
	}

	switch int(restErr.Code) {
	case codeMissingAccess, codeMissingPermissions:
		return fmt.Errorf("%w: %s", ErrMissingAccess, restErr.Message)
	case codeUnknownGuild:
		return fmt.Errorf("%w: %s", ErrUnknownGuild, restErr.Message)
	case codeUnknownInvite:
		return fmt.Errorf("%w: %s", ErrUnknownInvite, restErr.Message)
	case codeUnknownMember, codeUnknownUser:
		return fmt.Errorf("%w: %s", ErrUnknownMember, restErr.Message)
	default:
		return err
	}
}
