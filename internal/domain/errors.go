package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCart indicates an active cart already exists for the
	// identity; callers should fetch the existing cart instead of retrying.
	ErrDuplicateCart = errors.New("duplicate cart")

	// ErrCurrencyMismatch indicates arithmetic across two different
	// currency codes.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrUnknownCurrency indicates a currency code missing from the
	// currency table.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrAccessDenied indicates the caller may not view or act on the
	// entity, e.g. checking out a cancelled or empty order.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidBilling indicates a billing submission without a usable
	// email and address; checkout must not advance past the billing step.
	ErrInvalidBilling = errors.New("billing details incomplete")

	// ErrHardDecline indicates an unrecoverable payment failure, e.g. an
	// unsupported card brand.
	ErrHardDecline = errors.New("hard decline")

	// ErrGateway indicates a failed call to the payment gateway.
	ErrGateway = errors.New("payment gateway failure")

	// ErrGatewayModeMismatch indicates a payment method created under one
	// gateway mode being used with a client configured for the other.
	ErrGatewayModeMismatch = errors.New("payment gateway mode mismatch")

	// ErrInvalidPaymentState indicates a payment operation attempted from
	// a state it is not valid in.
	ErrInvalidPaymentState = errors.New("invalid payment state")

	// ErrRefundExceedsBalance indicates a refund request larger than the
	// payment's remaining balance.
	ErrRefundExceedsBalance = errors.New("refund exceeds balance")

	// ErrPaymentFailed is the only payment error surfaced to end users.
	// Internal reasons are logged, never returned.
	ErrPaymentFailed = errors.New("we encountered an error processing your payment, please verify your details and try again")
)
