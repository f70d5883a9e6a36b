// Package enrollment is the boundary to the course-enrollment system. The
// billing core only ever asks it to grant or revoke a user's access to the
// courses mapped to a product; which courses those are is owned by the LMS.
package enrollment

import "context"

// Enroller grants and revokes course access. Both operations are expected
// to be idempotent: the lifecycle tracker may repeat them for the same
// logical transition when a webhook is re-delivered.
type Enroller interface {
	Grant(ctx context.Context, localUserID int64, productID string) error
	Revoke(ctx context.Context, localUserID int64, productID string) error
}
