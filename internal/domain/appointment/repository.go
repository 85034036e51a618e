package appointment

import "context"

// Repository is the narrow read-only view this service has of the admin
// application's appointment data. The re-fetch at reminder fire time goes
// through GetByID so a cancellation written after scheduling is observed.
type Repository interface {
	// GetByID returns an appointment, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Appointment, error)

	// ServiceName resolves a service reference to its display name,
	// or ErrServiceNotFound.
	ServiceName(ctx context.Context, serviceID int64) (string, error)
}
