package nsenter

import (
	"fmt"

	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// HandoffFunc continues the strict pass in a fresh process image that
// joins kinds, in order, before the Go runtime starts
type HandoffFunc func(kinds []Kind) error

// Sequencer joins the enabled namespaces of a registry in two passes
type Sequencer struct {
	p       platform.Platform
	reg     *Registry
	log     *logger.Logger
	handoff HandoffFunc

	fsUnshared bool
}

func NewSequencer(p platform.Platform, reg *Registry, log *logger.Logger, handoff HandoffFunc) *Sequencer {
	return &Sequencer{
		p:       p,
		reg:     reg,
		log:     log.WithField("component", "sequencer"),
		handoff: handoff,
	}
}

// prepareMount gives the locked thread a private fs_struct; setns refuses
// a mount namespace while the fs_struct is shared with other threads
func (s *Sequencer) prepareMount(mask int) error {
	if s.fsUnshared || mask&KindMount.Flag() == 0 {
		return nil
	}
	if err := s.p.Unshare(platform.CloneFS); err != nil {
		return _errors.Wrap("unshare", "CLONE_FS", err)
	}
	s.fsUnshared = true
	return nil
}

// handoffPending reports whether an enabled kind from start on can only
// be joined by the pre-runtime bootstrap
func (s *Sequencer) handoffPending(start Kind) bool {
	if s.handoff == nil {
		return false
	}
	for _, k := range s.reg.Enabled() {
		if k >= start && s.p.JoinNeedsHandoff(k.Flag()) {
			return true
		}
	}
	return false
}

// viaHandoff reports whether k is left to the bootstrap. The mount
// namespace goes along with a pending handoff: once it is joined, the
// dynamic loader of the re-executed binary would be looked up in the
// target's root.
func (s *Sequencer) viaHandoff(k Kind, start Kind) bool {
	if s.p.JoinNeedsHandoff(k.Flag()) {
		return true
	}
	return k == KindMount && s.handoffPending(start)
}

func (s *Sequencer) deferred(k Kind) bool {
	return k == KindUser || s.viaHandoff(k, KindUser)
}

// BestEffort is the first pass. It skips the user namespace and every
// kind left to a handoff, tries one batched pidfd join over the slots
// opened from the target, then joins what is left one by one. Failures
// leave the slot enabled for the strict pass.
func (s *Sequencer) BestEffort(pidfd int) {
	if pidfd >= 0 {
		mask := 0
		var batch []Kind
		for _, k := range s.reg.Enabled() {
			if s.deferred(k) || !s.reg.Slot(k).FromTarget {
				continue
			}
			mask |= k.Flag()
			batch = append(batch, k)
		}

		if mask != 0 {
			err := s.prepareMount(mask)
			if err == nil {
				err = s.p.Setns(pidfd, mask)
			}
			if err == nil {
				s.log.Debug("joined namespaces through pidfd", "count", len(batch))
				for _, k := range batch {
					s.reg.Disable(k)
				}
			} else {
				s.log.Debug("pidfd join failed, falling back to descriptors", "mask", fmt.Sprintf("%#x", mask), "error", err)
			}
		}
	}

	for _, k := range s.reg.Enabled() {
		if s.deferred(k) {
			continue
		}
		slot := s.reg.Slot(k)
		if err := s.join(slot); err != nil {
			s.log.Debug("deferring namespace to strict pass", "ns", k.Entry(), "error", err)
			continue
		}
		s.reg.Disable(k)
	}
}

// Strict is the second pass. Every remaining enabled slot from start on
// is joined in kind order and any failure is fatal. The first kind left
// to a handoff hands off that kind and everything after it; Strict then
// reports true.
func (s *Sequencer) Strict(start Kind) (bool, error) {
	for _, k := range s.reg.Enabled() {
		if k < start {
			continue
		}

		if s.viaHandoff(k, k) {
			if s.handoff == nil {
				return false, &_errors.Error{
					Kind: _errors.ErrUnsupported,
					Op:   fmt.Sprintf("joining '%s' requires a build with the pre-runtime bootstrap", k.Entry()),
				}
			}
			if err := s.handoff(s.remaining(k)); err != nil {
				return false, fmt.Errorf("reassociate to namespace '%s' failed: %w", k.Entry(), err)
			}
			return true, nil
		}

		if err := s.join(s.reg.Slot(k)); err != nil {
			return false, fmt.Errorf("reassociate to namespace '%s' failed: %w", k.Entry(), err)
		}
		s.log.Debug("joined namespace", "ns", k.Entry())
		s.reg.Disable(k)
	}
	return false, nil
}

// remaining lists the enabled kinds from start on; a handoff joins all
// of them before the runtime of the new image starts
func (s *Sequencer) remaining(start Kind) []Kind {
	var out []Kind
	for _, k := range s.reg.Enabled() {
		if k >= start {
			out = append(out, k)
		}
	}
	return out
}

func (s *Sequencer) join(slot Slot) error {
	if slot.FD < 0 {
		return _errors.New(_errors.ErrInvalidArgument, "no descriptor for", slot.Kind.Entry())
	}
	if err := s.prepareMount(slot.Kind.Flag()); err != nil {
		return err
	}
	if err := s.p.Setns(slot.FD, slot.Kind.Flag()); err != nil {
		return _errors.Wrap("setns", slot.Kind.Entry(), err)
	}
	return nil
}
