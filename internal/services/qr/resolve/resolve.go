// Package resolve maps scanned identifiers to redirect targets and binds
// targets to unbound identifiers.
//
// Each identifier is either Unbound or Bound. Binding requires a non-empty
// target and the shared secret; any rejected attempt leaves the identifier
// as it was. There is no transition back to Unbound.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/louisbranch/homelabqr/internal/services/qr/qrid"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

// State is the binding state of an identifier.
type State int

const (
	// Unbound identifiers have nothing to redirect to yet. Unknown
	// identifiers resolve Unbound too.
	Unbound State = iota
	Bound
)

func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Resolution is the outcome of resolving one identifier.
type Resolution struct {
	ID     string
	State  State
	Target string
}

// BindRequest carries one binding attempt.
type BindRequest struct {
	ID         string
	Target     string
	Credential string
}

// Config wires a Service.
type Config struct {
	Store storage.QRCodeStore
	// Secret is the shared binding secret, plain or bcrypt-hashed.
	Secret string
}

// Service resolves and binds identifiers.
type Service struct {
	store    storage.QRCodeStore
	verifier Verifier
}

// New returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("resolve: store is required")
	}
	return &Service{store: cfg.Store, verifier: NewVerifier(cfg.Secret)}, nil
}

// Resolve reports where id should send a visitor.
func (s *Service) Resolve(ctx context.Context, id string) (Resolution, error) {
	id = qrid.Normalize(id)
	if !qrid.Valid(id) {
		return Resolution{}, apperrors.WithMetadata(apperrors.CodeInvalidIdentifier, "malformed identifier",
			map[string]string{"id": id})
	}
	code, err := s.store.GetQRCode(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Resolution{ID: id, State: Unbound}, nil
		}
		return Resolution{}, fmt.Errorf("resolve %s: %w", id, err)
	}
	if !code.Bound() {
		return Resolution{ID: id, State: Unbound}, nil
	}
	return Resolution{ID: id, State: Bound, Target: code.RedirectURL}, nil
}

// Bind points req.ID at req.Target.
//
// Checks run in a fixed order so the first problem is the one reported:
// missing target, missing credential, wrong credential, unknown identifier.
func (s *Service) Bind(ctx context.Context, req BindRequest) (Resolution, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return Resolution{}, apperrors.New(apperrors.CodeRedirectTargetMissing, "redirect target is required")
	}
	if req.Credential == "" {
		return Resolution{}, apperrors.New(apperrors.CodeCredentialMissing, "credential is required")
	}
	if !s.verifier.Verify(req.Credential) {
		return Resolution{}, apperrors.New(apperrors.CodeCredentialInvalid, "credential does not match")
	}

	id := qrid.Normalize(req.ID)
	if !qrid.Valid(id) {
		return Resolution{}, apperrors.WithMetadata(apperrors.CodeNotFound, "qr code not found",
			map[string]string{"id": id})
	}
	if err := s.store.BindQRCode(ctx, id, target); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Resolution{}, apperrors.WrapWithMetadata(apperrors.CodeNotFound, "qr code not found",
				map[string]string{"id": id}, err)
		}
		return Resolution{}, fmt.Errorf("bind %s: %w", id, err)
	}
	return Resolution{ID: id, State: Bound, Target: target}, nil
}
