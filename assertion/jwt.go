// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package assertion

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
)

const (
	// JWTBearerGrantType is the grant_type of the JWT bearer grant (RFC 7523
	// section 2.1).
	JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// ClientAssertionType is the client_assertion_type of a JWT client
	// assertion (RFC 7523 section 2.2).
	ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// DefaultExpiry is the lifetime of an assertion.
	DefaultExpiry = 5 * time.Minute
)

// registered claims set by Serialize; WithClaims can't override them.
var registeredClaims = []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti"}

// JWT signs assertions for an issuer, usually the client id, and an
// audience, usually the token endpoint. Each Serialize returns a new
// assertion with its own "jti". It's safe for concurrent use.
type JWT struct {
	issuer   string
	subject  string
	audience []string
	claims   map[string]interface{}
	expiry   time.Duration
	alg      jose.SignatureAlgorithm
	signer   jose.Signer

	// replaced in tests
	genID func() (string, error)
	now   func() time.Time
}

// NewJWT creates a new JWT. Exactly one of WithClientSecret, WithRSAKey or
// WithECDSAKey is required.
//
// Supported options: WithClientSecret, WithRSAKey, WithECDSAKey, WithKeyID,
// WithHeaders, WithSubject, WithClaims, WithExpiry
func NewJWT(issuer string, audience []string, opt ...Option) (*JWT, error) {
	const op = "assertion.NewJWT"
	opts := jwtDefaults()
	var errs *multierror.Error
	if issuer == "" {
		errs = multierror.Append(errs, ErrMissingIssuer)
	}
	if len(audience) == 0 {
		errs = multierror.Append(errs, ErrMissingAudience)
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	switch {
	case len(opts.withKeys) == 0:
		errs = multierror.Append(errs, ErrMissingKeyOrSecret)
	case len(opts.withKeys) > 1:
		errs = multierror.Append(errs, ErrBothKeyAndSecret)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := opts.withKeys[0]
	signer, err := jose.NewSigner(key, (&jose.SignerOptions{ExtraHeaders: opts.withHeaders}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create signer: %w", op, err)
	}
	subject := opts.withSubject
	if subject == "" {
		subject = issuer
	}
	claims := make(map[string]interface{}, len(opts.withClaims))
	for k, v := range opts.withClaims {
		claims[k] = v
	}
	for _, k := range registeredClaims {
		delete(claims, k)
	}
	return &JWT{
		issuer:   issuer,
		subject:  subject,
		audience: append([]string(nil), audience...),
		claims:   claims,
		expiry:   opts.withExpiry,
		alg:      key.Algorithm,
		signer:   signer,
		genID:    uuid.GenerateUUID,
		now:      time.Now,
	}, nil
}

// Algorithm returns the signing algorithm.
func (j *JWT) Algorithm() string { return string(j.alg) }

// Serialize signs a new assertion.
func (j *JWT) Serialize() (string, error) {
	const op = "JWT.Serialize"
	if j.signer == nil || j.genID == nil || j.now == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	id, err := j.genID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate jti: %w", op, err)
	}
	now := j.now().UTC()
	registered := jwt.Claims{
		ID:        id,
		Issuer:    j.issuer,
		Subject:   j.subject,
		Audience:  j.audience,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(j.expiry)),
	}
	raw, err := jwt.Signed(j.signer).Claims(registered).Claims(j.claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: unable to sign: %w", op, err)
	}
	return raw, nil
}
