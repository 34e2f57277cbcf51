package ports

import "time"

// PasswordHasher is a one-way credential primitive.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Clock supplies the current time for token issuance and expiry checks.
type Clock interface {
	Now() time.Time
}

// TokenIssuer mints bearer tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// TokenValidator resolves a bearer token back to the user id it was issued for.
type TokenValidator interface {
	Validate(token string) (string, error)
}
