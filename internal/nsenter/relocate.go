package nsenter

import (
	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

// Relocation holds the root and working directory requested for the
// program. Descriptors are opened before namespace entry; WorkDirNS is a
// path resolved inside the new root.
type Relocation struct {
	RootFD    int
	WorkDirFD int
	WorkDirNS string
}

func NewRelocation() *Relocation {
	return &Relocation{RootFD: -1, WorkDirFD: -1}
}

// SnapshotWorkDir keeps the current directory when only the root changes,
// so the program starts at the same relative location inside the new root
func (rl *Relocation) SnapshotWorkDir(p platform.Platform) error {
	if rl.RootFD < 0 || rl.WorkDirFD >= 0 || rl.WorkDirNS != "" {
		return nil
	}
	fd, err := p.OpenRead(".")
	if err != nil {
		return _errors.Wrap("cannot open current working directory", "", err)
	}
	rl.WorkDirFD = fd
	return nil
}

// Apply changes root and working directory. The root is entered through
// its descriptor: fchdir, chroot("."), chdir("/").
func (rl *Relocation) Apply(p platform.Platform) error {
	if rl.RootFD >= 0 {
		if err := p.Fchdir(rl.RootFD); err != nil {
			return _errors.Wrap("change directory by root file descriptor failed", "", err)
		}
		if err := p.Chroot("."); err != nil {
			return _errors.Wrap("chroot failed", "", err)
		}
		if err := p.Chdir("/"); err != nil {
			return _errors.Wrap("cannot change directory to", "/", err)
		}
		_ = p.Close(rl.RootFD)
		rl.RootFD = -1
	}

	if rl.WorkDirNS != "" {
		fd, err := p.OpenRead(rl.WorkDirNS)
		if err != nil {
			return _errors.Wrap("cannot open current working directory", rl.WorkDirNS, err)
		}
		rl.WorkDirFD = fd
	}

	if rl.WorkDirFD >= 0 {
		if err := p.Fchdir(rl.WorkDirFD); err != nil {
			return _errors.Wrap("change directory by working directory file descriptor failed", "", err)
		}
		_ = p.Close(rl.WorkDirFD)
		rl.WorkDirFD = -1
	}
	return nil
}

// Close releases any descriptor still held
func (rl *Relocation) Close(p platform.Platform) {
	if rl.RootFD >= 0 {
		_ = p.Close(rl.RootFD)
		rl.RootFD = -1
	}
	if rl.WorkDirFD >= 0 {
		_ = p.Close(rl.WorkDirFD)
		rl.WorkDirFD = -1
	}
}
