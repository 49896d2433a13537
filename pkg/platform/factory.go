package platform

import (
	"sync"
)

var (
	currentPlatform Platform
	platformOnce    sync.Once
)

// NewPlatform returns the process-wide platform implementation. Off Linux
// every kernel primitive reports an unsupported operation.
func NewPlatform() Platform {
	platformOnce.Do(func() {
		currentPlatform = &LinuxPlatform{
			BasePlatform: NewBasePlatform(),
		}
	})
	return currentPlatform
}
