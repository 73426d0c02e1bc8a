package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrForbidden        = errors.New("forbidden")
	ErrBusinessRule     = errors.New("business rule violation")
	ErrPayment          = errors.New("payment gateway failure")
	ErrToken            = errors.New("access token rejected")
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrConflict           = errors.New("concurrent update conflict")
)

// Rule codes carried by RuleError.
const (
	RuleSubscriptionNotActive      = "subscription_not_active"
	RuleInsufficientSlots          = "insufficient_slots"
	RuleNotPurchasable             = "not_purchasable"
	RuleInvalidSlotCount           = "invalid_slot_count"
	RuleSlotsExceedTotal           = "slots_exceed_total"
	RuleAccessNotProvided          = "access_not_provided"
	RuleAlreadyCompleted           = "already_completed"
	RuleInvalidTransition          = "invalid_transition"
	RuleTransactionAlreadyAttached = "transaction_already_attached"
	RuleTransactionNotCompleted    = "transaction_not_completed"
	RuleTransactionFailed          = "transaction_failed"
	RuleAlreadyRefunded            = "already_refunded"
	RuleTokenUsed                  = "token_used"
	RuleTokenExpired               = "token_expired"
	RuleDisputeNotOpen             = "dispute_not_open"
	RuleResolutionNotesRequired    = "resolution_notes_required"
	RulePurchaseDisputed           = "purchase_disputed"
)

// RuleError is a state-machine or invariant violation identified by a stable code.
type RuleError struct {
	Code string
}

func Rule(code string) error { return &RuleError{Code: code} }

func (e *RuleError) Error() string { return "business rule violation: " + e.Code }

func (e *RuleError) Is(target error) bool { return target == ErrBusinessRule }

// RuleCode returns the rule code carried by err, or "" when err is not a RuleError.
func RuleCode(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// AuthorizationError reports a caller lacking the role required for Action.
type AuthorizationError struct {
	UserID string
	Action string
}

func Forbidden(userID, action string) error { return &AuthorizationError{UserID: userID, Action: action} }

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q is not allowed to %s", e.UserID, e.Action)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// NotFoundError names the missing aggregate.
type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity, id string) error { return &NotFoundError{Entity: entity, ID: id} }

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Entity, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PaymentError wraps a failure reported by the payment gateway.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string { return fmt.Sprintf("payment %s: %v", e.Op, e.Err) }

func (e *PaymentError) Unwrap() error { return e.Err }

func (e *PaymentError) Is(target error) bool { return target == ErrPayment }

// TokenReason tells why an access token was rejected.
type TokenReason string

const (
	TokenInvalid TokenReason = "invalid"
	TokenExpired TokenReason = "expired"
	TokenUsed    TokenReason = "used"
)

type TokenError struct {
	Reason TokenReason
}

func (e *TokenError) Error() string { return "access token " + string(e.Reason) }

func (e *TokenError) Is(target error) bool { return target == ErrToken }

// TokenRejection returns the reason carried by err, or "" when err is not a TokenError.
func TokenRejection(err error) TokenReason {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}
