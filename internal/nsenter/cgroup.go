package nsenter

import (
	"bytes"
	"path"
	"strconv"

	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// CgroupJoiner moves the calling process into the target's cgroup v2
type CgroupJoiner struct {
	p     platform.Platform
	root  string
	retry Retry
	log   *logger.Logger
}

func NewCgroupJoiner(p platform.Platform, cgroupRoot string, retry Retry, log *logger.Logger) *CgroupJoiner {
	return &CgroupJoiner{
		p:     p,
		root:  cgroupRoot,
		retry: retry,
		log:   log.WithField("component", "cgroup"),
	}
}

func (c *CgroupJoiner) isCgroup2() bool {
	magic, err := c.p.Statfs(c.root)
	if err != nil {
		c.log.Error("statfs failed", "path", c.root, "error", err)
		return false
	}
	return magic == platform.Cgroup2SuperMagic
}

// membership extracts the path after the last ':' on the first line of a
// /proc/<pid>/cgroup file
func membership(data []byte) (string, bool) {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	i := bytes.LastIndexByte(line, ':')
	if i < 0 {
		return "", false
	}
	return string(line[i+1:]), true
}

// Open resolves the target's cgroup and opens its cgroup.procs for
// appending. It runs before namespace entry, while the host cgroup
// hierarchy is still visible.
func (c *CgroupJoiner) Open(r *Resolver) (int, error) {
	if !c.isCgroup2() {
		return -1, _errors.Invalid("--join-cgroup is only supported in cgroup v2")
	}

	fd, err := r.OpenTarget("cgroup", "")
	if err != nil {
		return -1, err
	}
	data, err := readAll(c.p, fd, c.retry)
	_ = c.p.Close(fd)
	if err != nil {
		return -1, _errors.Wrap("failed to get cgroup path", r.TargetPath("cgroup"), err)
	}

	rel, ok := membership(data)
	if !ok {
		return -1, _errors.New(_errors.ErrIO, "failed to get cgroup path", r.TargetPath("cgroup"))
	}

	procs := path.Join(c.root, rel, "cgroup.procs")
	procsFD, err := c.p.OpenAppend(procs)
	if err != nil {
		return -1, _errors.Wrap("failed to open", procs, err)
	}
	c.log.Debug("opened cgroup.procs", "path", procs)
	return procsFD, nil
}

// Join writes the caller's PID to the opened cgroup.procs
func (c *CgroupJoiner) Join(procsFD int) error {
	pid := strconv.Itoa(c.p.Getpid())
	if err := writeAll(c.p, procsFD, []byte(pid), c.retry); err != nil {
		return _errors.Wrap("write cgroup.procs failed", "", err)
	}
	return nil
}
