package nowlink

import (
	"sync"

	"github.com/opd-ai/nowlink/interfaces"
)

// boundDrivers maps each driver to the initialized node that owns it.
var (
	boundDrivers   = make(map[interfaces.RadioDriver]*Node)
	boundDriversMu sync.Mutex
)

// bindDriver claims driver for n. It reports false if another node holds it.
func bindDriver(driver interfaces.RadioDriver, n *Node) bool {
	boundDriversMu.Lock()
	defer boundDriversMu.Unlock()

	if owner, exists := boundDrivers[driver]; exists && owner != n {
		return false
	}
	boundDrivers[driver] = n
	return true
}

// unbindDriver releases driver if n holds it.
func unbindDriver(driver interfaces.RadioDriver, n *Node) {
	boundDriversMu.Lock()
	defer boundDriversMu.Unlock()

	if boundDrivers[driver] == n {
		delete(boundDrivers, driver)
	}
}
