package oauthmodel

import (
	"github.com/jrsteele09/go-authenticator/internal/errors"
)

var (
	ErrInvalidRedirectUri  = errors.New(errors.ErrValidation, "redirect_uri does not match the client's registered callback url")
	ErrInvalidResponseType = errors.New(errors.ErrValidation, "unsupported response type, response_type must be code")
	ErrUnknownClient       = errors.New(errors.ErrValidation, "invalid client_id")
)
