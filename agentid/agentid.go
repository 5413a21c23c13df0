// Package agentid generates this process's own identity, used as the agent
// ID carried in HelloMessage peer exchanges.
package agentid

import (
	"sync"

	"github.com/google/uuid"
)

var (
	once sync.Once
	self uuid.UUID
)

// Self returns a UUID generated once per process and reused thereafter.
func Self() uuid.UUID {
	once.Do(func() {
		self = uuid.New()
	})
	return self
}
