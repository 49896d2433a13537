package nsenter

import (
	_errors "yawl/pkg/errors"
)

// Usable decides whether --all should join k. A kind is skipped when
// either side has no proc entry for it, or when the target already
// shares the caller's namespace of that kind. The mount namespace is
// joined regardless, since entering it resets root and working
// directory to those of the namespace.
func (r *Resolver) Usable(k Kind) (bool, error) {
	self, err := r.p.Stat(r.SelfPath(k.Entry()))
	if err != nil {
		return false, nil
	}

	target, err := r.p.Stat(r.TargetPath(k.Entry()))
	if err != nil {
		if k == KindUser {
			return false, _errors.Wrap("cannot stat", r.TargetPath(k.Entry()), err)
		}
		return false, nil
	}

	if k == KindMount {
		return true, nil
	}
	return !self.SameFile(target), nil
}

// EnableUsable enables every kind not already enabled that Usable accepts.
// The descriptors are resolved later from the target.
func (r *Resolver) EnableUsable(reg *Registry) error {
	for _, k := range Kinds() {
		if reg.IsEnabled(k) {
			continue
		}
		ok, err := r.Usable(k)
		if err != nil {
			return err
		}
		if ok {
			_ = reg.Enable(k, "")
		}
	}
	return nil
}

// RejectOwnUserNamespace fails when the user slot refers to the caller's
// own user namespace; the kernel refuses to re-enter it anyway.
func (r *Resolver) RejectOwnUserNamespace(reg *Registry) error {
	s := reg.Slot(KindUser)
	if !s.Enabled || s.FD < 0 {
		return nil
	}

	target, err := r.p.Fstat(s.FD)
	if err != nil {
		return _errors.Wrap("cannot stat", KindUser.Entry(), err)
	}

	self, err := r.p.Stat(r.SelfPath(KindUser.Entry()))
	if err != nil {
		if _errors.KindOf(err) == _errors.ErrNotFound {
			return nil
		}
		return _errors.Wrap("cannot stat", r.SelfPath(KindUser.Entry()), err)
	}

	if target.SameFile(self) {
		return _errors.Invalid("target user namespace is the caller's own; cannot re-enter it")
	}
	return nil
}
