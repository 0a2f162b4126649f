package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// TokenStore acquires and releases the named exclusion tokens a pipeline
// node may require before it is allowed to run.
//
//go:generate go run go.uber.org/mock/mockgen -source=token_store.go -destination=mocks/mock_token_store.go -package=mocks
type TokenStore interface {
	// Acquire attempts to take ownership of token on behalf of
	// token.HolderID. ok is false if the token is already held by a
	// different holder (Holder then reports that holder's signature).
	Acquire(token domain.Token) (ok bool, err error)

	// Holder returns the signature currently recorded for name, or
	// ok=false if the token is unowned.
	Holder(name string) (holderID string, ok bool, err error)

	// Release relinquishes a token previously acquired by holderID. It is
	// never implicit: a holder that exits without releasing leaves the
	// token held, and no method of this interface takes over a token held
	// by another holder.
	Release(token domain.Token) error
}
