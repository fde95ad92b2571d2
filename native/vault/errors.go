package vault

import "errors"

var (
	// Wiring errors surfaced when the engine is used before configuration.
	errNilState  = errors.New("vault engine: state not configured")
	errNilToken  = errors.New("vault engine: token ledger not configured")
	errNoVault   = errors.New("vault engine: custody address not configured")
	errNilParams = errors.New("vault engine: params not configured")

	// ErrPaused is returned by every mutating operation while the pause
	// toggle is set.
	ErrPaused = errors.New("vault: module paused")

	// ErrUnauthorized is returned when the caller lacks the role required by
	// the operation.
	ErrUnauthorized = errors.New("vault: caller not authorized")

	// ErrZeroAddress rejects operations against the zero address.
	ErrZeroAddress = errors.New("vault: zero address")

	// ErrZeroAmount rejects zero or negative token amounts.
	ErrZeroAmount = errors.New("vault: amount must be positive")

	// ErrZeroDuration rejects zero lockup durations.
	ErrZeroDuration = errors.New("vault: duration must be positive")

	// ErrUnsupportedDuration rejects stake durations outside the configured
	// breakpoint set.
	ErrUnsupportedDuration = errors.New("vault: unsupported lockup duration")

	// ErrAmountOutOfRange rejects stakes outside [min, max].
	ErrAmountOutOfRange = errors.New("vault: amount outside configured bounds")

	// ErrPositionExists rejects Stake against a live position.
	ErrPositionExists = errors.New("vault: position already exists")

	// ErrNoPosition rejects operations that need a live position.
	ErrNoPosition = errors.New("vault: no active position")

	// ErrCooldownActive rejects mutations while a cooldown of either kind is
	// open.
	ErrCooldownActive = errors.New("vault: cooldown already in progress")

	// ErrNoCooldown rejects completions when no matching request is open.
	ErrNoCooldown = errors.New("vault: no cooldown in progress")

	// ErrCooldownNotElapsed rejects withdrawals before the cooldown matures.
	ErrCooldownNotElapsed = errors.New("vault: cooldown period not elapsed")

	// ErrExceedsUnlocked rejects normal-exit requests above the matured
	// portion.
	ErrExceedsUnlocked = errors.New("vault: amount exceeds unlocked balance")

	// ErrExceedsLocked rejects early-exit requests above the still-locked
	// portion.
	ErrExceedsLocked = errors.New("vault: amount exceeds locked balance")

	// ErrExceedsCooldown rejects withdrawals above the requested cooldown
	// amount.
	ErrExceedsCooldown = errors.New("vault: amount exceeds cooldown balance")

	// ErrLockupShortened rejects combinations that would shrink the effective
	// lockup below its pre-call value.
	ErrLockupShortened = errors.New("vault: lockup period cannot shorten")

	// ErrArithmetic rejects combinations whose fixed-point intermediate
	// values would overflow instead of letting them wrap.
	ErrArithmetic = errors.New("vault: arithmetic overflow")
)
