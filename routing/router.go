package routing

import (
	"errors"
	"sync"

	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/peer"
	"github.com/opd-ai/nowlink/radio"
	"github.com/sirupsen/logrus"
)

// Router sends datagrams, repairing stale peer interface bindings against the
// currently active interfaces before handing frames to the driver.
//
// Router is safe for concurrent use; sends are serialized.
type Router struct {
	driver interfaces.RadioDriver
	dir    *peer.Directory
	pick   func(radio.InterfaceSet) (radio.Interface, bool)
	mu     sync.Mutex
}

// NewRouter creates a router over driver and dir.
func NewRouter(driver interfaces.RadioDriver, dir *peer.Directory) *Router {
	return &Router{
		driver: driver,
		dir:    dir,
		pick:   SelectInterface,
	}
}

// SendUnicast sends payload to addr. A nil error means the driver accepted
// the frame; delivery is reported later through the send callback.
func (r *Router) SendUnicast(addr radio.Address, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.activeInterfaces()
	if err != nil {
		return radio.NewOpError("send", &addr, err)
	}
	if err := limits.ValidatePayload(payload); err != nil {
		return radio.NewOpError("send", &addr, err)
	}

	info, err := r.dir.Get(addr)
	if err != nil {
		return err
	}

	res := resolve(info.Interface, active, r.pick)
	switch res.Outcome {
	case Unreachable:
		return radio.NewOpError("send", &addr, radio.ErrRadioInactive)
	case NeedsReassign:
		if _, err := r.dir.RebindInactive(addr, active, res.Target); err != nil {
			return err
		}
	}

	if err := r.driver.Send(addr, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Router.SendUnicast",
			"peer_addr":    addr.String(),
			"payload_size": len(payload),
			"error":        err.Error(),
		}).Warn("Driver rejected unicast frame")
		return radio.NewOpError("send", &addr, radio.DriverError(err))
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Router.SendUnicast",
		"peer_addr":    addr.String(),
		"payload_size": len(payload),
		"repaired":     res.Outcome == NeedsReassign,
	}).Debug("Unicast frame submitted")
	return nil
}

// SendBroadcast sends payload to every registered peer.
//
// The replacement interface for peers bound to an inactive role is chosen at
// most once per call, the first time such a peer is met, and reused for every
// other peer needing repair. A failure to repair or send to one peer does not
// stop the others; all such failures are returned joined. Having no interface
// to repair onto fails the whole broadcast with radio.ErrRadioInactive, and
// that check comes before payload validation and the empty-directory check.
// Peers removed while the broadcast runs are skipped.
func (r *Router) SendBroadcast(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.activeInterfaces()
	if err != nil {
		return radio.NewOpError("broadcast", nil, err)
	}
	if err := limits.ValidatePayload(payload); err != nil {
		return radio.NewOpError("broadcast", nil, err)
	}

	peers, err := r.dir.All()
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		return radio.NewOpError("broadcast", nil, radio.ErrNoPeers)
	}

	var (
		target   radio.Interface
		selected bool
		repaired int
		errs     []error
	)
	for _, p := range peers {
		if !active.Has(p.Interface) {
			if !selected {
				t, ok := r.pick(active)
				if !ok {
					return radio.NewOpError("broadcast", nil, radio.ErrRadioInactive)
				}
				target, selected = t, true
			}
			changed, err := r.dir.RebindInactive(p.Addr, active, target)
			if errors.Is(err, radio.ErrPeerNotFound) {
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if changed {
				repaired++
			}
		}

		if err := r.driver.Send(p.Addr, payload); err != nil {
			errs = append(errs, radio.NewOpError("broadcast", &p.Addr, radio.DriverError(err)))
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Router.SendBroadcast",
		"peer_count":   len(peers),
		"repaired":     repaired,
		"failed":       len(errs),
		"payload_size": len(payload),
	}).Debug("Broadcast submitted")
	return errors.Join(errs...)
}

// activeInterfaces re-reads the active set and fails with ErrRadioInactive
// when it is empty.
func (r *Router) activeInterfaces() (radio.InterfaceSet, error) {
	active, err := r.driver.ActiveInterfaces()
	if err != nil {
		return radio.NoInterfaces, radio.DriverError(err)
	}
	if active.Empty() {
		return radio.NoInterfaces, radio.ErrRadioInactive
	}
	return active, nil
}
