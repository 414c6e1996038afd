package domain

import (
	"context"
	"errors"
)

// LookupRequest identifies one carrier lookup. RequestSource tags the
// surface that triggered it for the upstream's request accounting.
type LookupRequest struct {
	DOTNumber     string
	RequestSource string
}

type Service interface {
	Lookup(ctx context.Context, req LookupRequest) (Record, error)
}

// Fetcher issues the remote carrier-data call.
type Fetcher interface {
	Fetch(ctx context.Context, dotNumber, requestSource string) (Record, error)
}

// DraftSnapshotFinder resolves a carrier record embedded in an
// unexpired draft filing, letting a resumed session skip the remote
// fetch entirely. Implemented by the filing store.
type DraftSnapshotFinder interface {
	FindDraftCarrierSnapshot(ctx context.Context, dotNumber string) (*Record, error)
}

var (
	ErrInvalidDOTNumber = errors.New("invalid_dot_number")
	ErrNotFound         = errors.New("carrier_not_found")
	ErrBadUpstream      = errors.New("carrier_bad_upstream")
	ErrUnavailable      = errors.New("carrier_unavailable")
)
