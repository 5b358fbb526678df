// Package directory persists the set of enrolled users. Reads and writes
// always cover the whole set; concurrent writers are last-writer-wins.
package directory

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Directory is the user store sessions and the account service share.
// Implementations return errors matching domain.ErrDirectoryIO when the
// backing store cannot be read or written.
type Directory interface {
	LoadAll(ctx context.Context) ([]domain.EnrolledUser, error)
	SaveAll(ctx context.Context, users []domain.EnrolledUser) error
}
