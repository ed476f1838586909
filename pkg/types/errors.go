package types

import "errors"

var (
	ErrOnboardingNotFound = errors.New("onboarding record not found")
	ErrNotaryNotFound     = errors.New("notary not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrPaymentNotFound    = errors.New("notary payment not found")
	ErrProviderNotFound   = errors.New("background check provider not found")
)
