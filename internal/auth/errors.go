package auth

import "errors"

// ErrInvalidCredentials is returned for a login with an unknown email or
// a wrong password. The two cases are deliberately indistinguishable to
// the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountInactive is returned when the account exists and the
// password matches but the account has been deactivated.
var ErrAccountInactive = errors.New("account inactive")
