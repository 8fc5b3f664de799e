package driven

import (
	"context"
	"errors"
)

// Sentinel errors returned by RegistryClient implementations.
var (
	// ErrPackageNotFound indicates the npm package does not exist.
	ErrPackageNotFound = errors.New("package not found")

	// ErrNoRepository indicates the package exists but declares no GitHub
	// repository in its metadata.
	ErrNoRepository = errors.New("package has no GitHub repository")
)

// RegistryClient defines the driven port for resolving an npm package name to
// its GitHub repository.
type RegistryClient interface {
	// ResolveRepository returns the "owner/name" of the GitHub repository
	// declared by the given npm package.
	ResolveRepository(ctx context.Context, pkg string) (string, error)
}
