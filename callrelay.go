package callrelay

import (
	"github.com/google/uuid"
)

// Identity names a user for routing purposes. It is chosen by the client.
type Identity string

// ConnID identifies one live transport connection.
type ConnID = uuid.UUID
