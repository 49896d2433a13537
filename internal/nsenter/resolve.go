package nsenter

import (
	"fmt"
	"path"
	"strconv"

	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

func openPath(p platform.Platform, name string) (int, error) {
	fd, err := p.OpenRead(name)
	if err != nil {
		return -1, _errors.Wrap("cannot open", name, err)
	}
	return fd, nil
}

// Resolver opens descriptors from explicit paths or from /proc/<target>/
type Resolver struct {
	p        platform.Platform
	procRoot string
	target   int
}

func NewResolver(p platform.Platform, procRoot string, target int) *Resolver {
	return &Resolver{p: p, procRoot: procRoot, target: target}
}

// TargetPath returns /proc/<target>/<entry>; an empty entry names the
// process directory itself
func (r *Resolver) TargetPath(entry string) string {
	return path.Join(r.procRoot, strconv.Itoa(r.target), entry)
}

// SelfPath returns the caller's own /proc/self/<entry>
func (r *Resolver) SelfPath(entry string) string {
	return path.Join(r.procRoot, "self", entry)
}

// OpenTarget opens name when given, otherwise the target's entry
func (r *Resolver) OpenTarget(entry, name string) (int, error) {
	if name == "" {
		if r.target <= 0 {
			return -1, _errors.Invalid("neither filename nor target pid supplied for %s", entry)
		}
		name = r.TargetPath(entry)
	}
	return openPath(r.p, name)
}

// ResolveDeferred opens the target's entry for every enabled slot that
// still lacks a descriptor
func (r *Resolver) ResolveDeferred(reg *Registry) error {
	for _, k := range reg.WithoutFD() {
		fd, err := r.OpenTarget(k.Entry(), "")
		if err != nil {
			return err
		}
		reg.SetFD(k, fd, true)
	}
	return nil
}

// OpenPidfd opens a pidfd for the target. A kernel without pidfd support
// yields ErrUnsupported, which callers may tolerate.
func (r *Resolver) OpenPidfd() (int, error) {
	fd, err := r.p.PidfdOpen(r.target)
	if err != nil {
		return -1, &_errors.Error{
			Kind: _errors.ErrUnsupported,
			Op:   "pidfd_open",
			Path: strconv.Itoa(r.target),
			Err:  err,
		}
	}
	return fd, nil
}

// OpenParentUserNamespace replaces the user slot with the owning user
// namespace of a namespace of the target. The source descriptor is, in
// order of preference: the enabled user slot, the pidfd's user namespace,
// any enabled slot, a freshly opened /proc/<target>/ns/user.
func (r *Resolver) OpenParentUserNamespace(reg *Registry, pidfd int) error {
	src := -1
	owned := false

	if s := reg.Slot(KindUser); s.Enabled && s.FD >= 0 {
		src = s.FD
	}

	if src < 0 && pidfd >= 0 {
		if fd, err := r.p.PidfdGetUserns(pidfd); err == nil {
			src, owned = fd, true
		}
	}

	if src < 0 {
		for _, k := range reg.Enabled() {
			if s := reg.Slot(k); s.FD >= 0 {
				src = s.FD
				break
			}
		}
	}

	if src < 0 {
		fd, err := r.OpenTarget(KindUser.Entry(), "")
		if err != nil {
			return err
		}
		src, owned = fd, true
	}

	parent, err := r.p.NsGetUserns(src)
	if owned {
		_ = r.p.Close(src)
	}
	if err != nil {
		return _errors.Wrap("failed to get parent user namespace", "", err)
	}

	reg.SetFD(KindUser, parent, false)
	return nil
}

// OpenSocketNetns replaces the net slot with the network namespace of the
// socket behind sockfd in the target
func (r *Resolver) OpenSocketNetns(reg *Registry, pidfd int, sockfd int) error {
	ownPidfd := false
	if pidfd < 0 {
		fd, err := r.OpenPidfd()
		if err != nil {
			return fmt.Errorf("--net-socket requires pidfd support: %w", err)
		}
		pidfd, ownPidfd = fd, true
	}
	if ownPidfd {
		defer r.p.Close(pidfd)
	}

	sk, err := r.p.PidfdGetfd(pidfd, sockfd)
	if err != nil {
		return _errors.Wrap("pidfd_getfd", strconv.Itoa(sockfd), err)
	}
	defer r.p.Close(sk)

	st, err := r.p.Fstat(sk)
	if err != nil {
		return _errors.Wrap("fstat", strconv.Itoa(sockfd), err)
	}
	if !st.IsSocket() {
		return _errors.Invalid("socket fd %d of pid %d is not a socket", sockfd, r.target)
	}

	netns, err := r.p.SocketNetns(sk)
	if err != nil {
		return _errors.Wrap("failed to get network namespace of socket", strconv.Itoa(sockfd), err)
	}

	reg.SetFD(KindNet, netns, false)
	return nil
}
