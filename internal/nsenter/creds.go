package nsenter

import (
	"strconv"

	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// IDRequest is a --setuid/--setgid value: a number or "follow"
type IDRequest struct {
	Set    bool
	Follow bool
	ID     uint32
}

// ParseID parses a numeric ID or the word "follow"
func ParseID(s string) (IDRequest, error) {
	if s == "follow" {
		return IDRequest{Set: true, Follow: true}, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return IDRequest{}, _errors.Invalid("failed to parse id %q", s)
	}
	return IDRequest{Set: true, ID: uint32(n)}, nil
}

// Credentials tracks the identity the program will run with
type Credentials struct {
	UID      IDRequest
	GID      IDRequest
	Preserve bool
	KeepCaps bool

	// SetgroupsErrors counts failed attempts to drop supplementary groups
	SetgroupsErrors int
}

// ForUserNamespace applies the defaults for a joined user namespace:
// UID/GID 0 unless given, and a first best-effort setgroups before entry.
func (c *Credentials) ForUserNamespace(p platform.Platform, log *logger.Logger) {
	if c.Preserve {
		return
	}
	if !c.UID.Set {
		c.UID = IDRequest{Set: true}
	}
	if !c.GID.Set {
		c.GID = IDRequest{Set: true}
	}
	if err := p.Setgroups([]int{}); err != nil {
		log.Debug("setgroups before entry failed", "error", err)
		c.SetgroupsErrors++
	}
}

// Follow replaces "follow" requests with the owner of the target's
// /proc/<pid>/ directory
func (c *Credentials) Follow(p platform.Platform, procFD int) error {
	st, err := p.Fstat(procFD)
	if err != nil {
		return _errors.Wrap("can not get process stat", "", err)
	}
	if c.UID.Follow {
		c.UID = IDRequest{Set: true, ID: st.Uid}
	}
	if c.GID.Follow {
		c.GID = IDRequest{Set: true, ID: st.Gid}
	}
	return nil
}

// DropGroups is the authoritative setgroups after entry. Only when the
// attempt before entry failed as well is the failure reported.
func (c *Credentials) DropGroups(p platform.Platform, log *logger.Logger) {
	if !c.GID.Set {
		return
	}
	if err := p.Setgroups([]int{}); err != nil {
		c.SetgroupsErrors++
		if c.SetgroupsErrors > 1 {
			log.Warn("setgroups failed; supplementary groups were not cleared", "error", err)
		}
	}
}

// Apply changes GID then UID of the calling process
func (c *Credentials) Apply(p platform.Platform) error {
	if c.GID.Set {
		if err := p.Setgid(int(c.GID.ID)); err != nil {
			return _errors.Wrap("setgid() failed", "", err)
		}
	}
	if c.UID.Set {
		if err := p.Setuid(int(c.UID.ID)); err != nil {
			return _errors.Wrap("setuid() failed", "", err)
		}
	}
	return nil
}

// ChildCredential returns the identity for a supervised child, or nil
// when neither ID changes
func (c *Credentials) ChildCredential(p platform.Platform) *platform.Credential {
	if !c.UID.Set && !c.GID.Set {
		return nil
	}
	cred := &platform.Credential{
		Uid: uint32(p.Getuid()),
		Gid: uint32(p.Getgid()),
	}
	if c.UID.Set {
		cred.Uid = c.UID.ID
	}
	if c.GID.Set {
		cred.Gid = c.GID.ID
	}
	return cred
}
