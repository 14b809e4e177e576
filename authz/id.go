// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// randomIDLen is the number of random bytes in an ID.
const randomIDLen = 24

// NewID generates a random ID suitable for a state or a nonce. The ID is
// base64url encoded without padding, with an optional prefix.
func NewID(optionalPrefix string) (string, error) {
	const op = "authz.NewID"
	b, err := uuid.GenerateRandomBytes(randomIDLen)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %w", op, ErrIDGeneratorFailed, err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	if optionalPrefix != "" {
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	}
	return id, nil
}
