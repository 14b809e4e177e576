// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrPopupBlocked is returned when the environment refused to open the
	// interactive window.
	ErrPopupBlocked = errors.New("popup blocked")

	// ErrAlreadyOpened is returned when Open is called more than once on
	// the same channel.
	ErrAlreadyOpened = errors.New("channel already opened")
)
