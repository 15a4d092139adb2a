package storage

import (
	"errors"

	"github.com/hutchhq/nodeup/pkg/types"
)

// ErrPhaseRegression is returned when a caller attempts to move the
// persisted phase backwards. The phase only ever advances.
var ErrPhaseRegression = errors.New("provisioning phase cannot regress")

// ErrNotFound is returned when a requested record has not been persisted.
var ErrNotFound = errors.New("record not found")

// Store is the reboot-durable state consumed by the phase machine.
// Implementations must commit writes to stable storage before returning,
// otherwise a crash between SetPhase and the reboot request would lose the
// phase transition.
type Store interface {
	// Phase flag
	Phase() (types.Phase, error)
	SetPhase(p types.Phase) error

	// Resolved cluster parameters, persisted during prepare so the
	// activate phase never re-resolves them.
	ClusterSpec() (*types.ClusterSpec, error)
	SetClusterSpec(spec *types.ClusterSpec) error
	NodeIdentity() (*types.NodeIdentity, error)
	SetNodeIdentity(id *types.NodeIdentity) error

	Close() error
}
