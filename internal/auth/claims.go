// Package auth verifies JWT bearer tokens for the catalog read API.
//
// Tokens are HS256-signed and carry the caller's role and price tier. Catalog
// endpoints accept anonymous callers; only the manual sync trigger requires
// a role.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller role carried by a token
type Role string

// Known roles
const (
	RoleCustomer Role = "cliente"
	RoleSales    Role = "comercial"
	RoleWorker   Role = "trabajador"
)

// PriceTier names the price column a caller is allowed to see
type PriceTier string

// Price tiers
const (
	PriceTierBase PriceTier = "basePrice"
	PriceTier2    PriceTier = "price2"
	PriceTier3    PriceTier = "price3"
)

// tierAliases maps priceType claim values to tiers, including the names the
// user directory issues (PVP, precio2, precio3)
var tierAliases = map[string]PriceTier{
	"basePrice": PriceTierBase,
	"PVP":       PriceTierBase,
	"price2":    PriceTier2,
	"precio2":   PriceTier2,
	"price3":    PriceTier3,
	"precio3":   PriceTier3,
}

// Claims are the JWT claims understood by the API
type Claims struct {
	UserID    string `json:"id,omitempty"`
	Role      Role   `json:"role,omitempty"`
	PriceType string `json:"priceType,omitempty"`
	jwt.RegisteredClaims
}

// Tier returns the price tier named by the priceType claim. Unknown values
// resolve to no tier.
func (c *Claims) Tier() (PriceTier, bool) {
	if c == nil {
		return "", false
	}
	tier, ok := tierAliases[c.PriceType]
	return tier, ok
}

// HasRole reports whether the claims carry one of roles
func (c *Claims) HasRole(roles ...Role) bool {
	if c == nil {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims of an authenticated request, or nil
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
