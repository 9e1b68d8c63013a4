package accountauth

import (
	"errors"
	"math"
	"net/http"
	"time"
)

// Kind classifies an engine failure. Each kind maps onto one HTTP status,
// except InvalidOrExpired whose status is chosen per operation.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindInvalidOrExpired
	KindDelivery
)

var kindNames = [...]string{
	KindInternal:         "internal",
	KindValidation:       "validation",
	KindConflict:         "conflict",
	KindUnauthorized:     "unauthorized",
	KindForbidden:        "forbidden",
	KindNotFound:         "not_found",
	KindRateLimited:      "rate_limited",
	KindInvalidOrExpired: "invalid_or_expired",
	KindDelivery:         "delivery",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is the typed failure returned by every Engine operation.
//
// Message is safe to show to the caller. Err, when set, carries the
// underlying cause and is never rendered by the HTTP boundary.
type Error struct {
	Kind       Kind
	Message    string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the bare kind sentinels (ErrValidation, ErrConflict, ...)
// against any Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode returns the HTTP status for e.
func (e *Error) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation, KindInvalidOrExpired:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Kind sentinels for errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrInvalidOrExpired = &Error{Kind: KindInvalidOrExpired}
	ErrDelivery         = &Error{Kind: KindDelivery}
	ErrInternal         = &Error{Kind: KindInternal}
)

var (
	// ErrAccountNotFound is returned by repositories when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned by repositories on a unique email violation.
	ErrDuplicateEmail = errors.New("account email already exists")
	// ErrStaleAccount is returned by repositories when a conditional update guard fails.
	ErrStaleAccount = errors.New("account changed concurrently")
	// ErrNotificationUndelivered wraps notifier failures after state was already written.
	ErrNotificationUndelivered = errors.New("notification undelivered")
	// ErrMFACodeMismatch is returned by MFA providers for a wrong code.
	ErrMFACodeMismatch = errors.New("invalid verification code")
	// ErrMFACodeExpired is returned by MFA providers for an expired code or session.
	ErrMFACodeExpired = errors.New("verification code has expired")
	// ErrMFAInvalidParameter is returned by MFA providers for malformed input.
	ErrMFAInvalidParameter = errors.New("invalid mfa parameters")
	// ErrMFACredentials is returned by MFA providers when they reject the password.
	ErrMFACredentials = errors.New("provider rejected credentials")
	// ErrEngineNotReady is returned when an Engine was not built by Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProfileImageType is returned for an upload with an unsupported extension.
	ErrProfileImageType = errors.New("unsupported profile image type")
)

// StatusCode maps any error onto an HTTP status. Errors that are not an
// *Error map to 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RetryAfter returns the whole-second wait carried by a rate limited error,
// or zero.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRateLimited {
		return e.RetryAfter
	}
	return 0
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds.
func RetryAfterSeconds(err error) int {
	d := RetryAfter(err)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// PublicMessage returns the caller-safe message of err. Internal errors and
// foreign errors collapse to a generic message.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal || e.Message == "" {
		return "internal server error"
	}
	return e.Message
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

func unauthorizedError(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func forbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func rateLimitedError(msg string, retryAfter time.Duration) error {
	return &Error{Kind: KindRateLimited, Message: msg, RetryAfter: retryAfter}
}

func invalidOrExpiredError(msg string, status int) error {
	return &Error{Kind: KindInvalidOrExpired, Message: msg, Status: status}
}

func deliveryError(err error) error {
	return &Error{
		Kind:    KindDelivery,
		Message: "notification could not be delivered",
		Err:     errors.Join(ErrNotificationUndelivered, err),
	}
}

func internalError(err error) error {
	if err == nil {
		err = ErrEngineNotReady
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Err: err}
}
