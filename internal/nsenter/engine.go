package nsenter

import (
	"os"

	"yawl/internal/nsenter/bootstrap"
	"yawl/pkg/config"
	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// NamespaceRequest selects one namespace kind. An empty Path means the
// namespace of the target process.
type NamespaceRequest struct {
	Kind Kind
	Path string
}

// PathRequest is an optional-value flag such as --root[=dir]
type PathRequest struct {
	Set  bool
	Path string
}

// Options is everything an invocation asks for
type Options struct {
	Target     int
	All        bool
	Namespaces []NamespaceRequest
	NetSocket  int // -1 when unset
	UserParent bool

	UID                 IDRequest
	GID                 IDRequest
	PreserveCredentials bool
	KeepCaps            bool

	Root      PathRequest
	WorkDir   PathRequest
	WorkDirNS string
	Env       bool

	NoFork     bool
	JoinCgroup bool

	Args []string
}

// NewOptions returns options with nothing selected
func NewOptions() Options {
	return Options{NetSocket: -1}
}

func (o *Options) Validate() error {
	if len(o.Args) == 0 {
		return _errors.Invalid("no program specified")
	}
	if o.WorkDir.Set && o.WorkDirNS != "" {
		return _errors.Invalid("--wd and --wdns are mutually exclusive")
	}
	if o.Target < 0 {
		return _errors.Invalid("invalid target pid %d", o.Target)
	}
	if o.NetSocket < -1 {
		return _errors.Invalid("invalid socket file descriptor %d", o.NetSocket)
	}
	return nil
}

// Engine joins the namespaces of a target and runs a program in them.
// It is single use: one Run or Resume per process image.
type Engine struct {
	p   platform.Platform
	cfg config.Config
	log *logger.Logger

	handoffEnabled bool
	selfArgs       []string

	opts     Options
	reg      *Registry
	res      *Resolver
	rel      *Relocation
	creds    Credentials
	cgroup   *CgroupJoiner
	selected int
	fork     bool

	pidfd    int
	envFD    int
	credFD   int
	cgroupFD int
	exeFD    int
}

func New(p platform.Platform, cfg *config.Config, log *logger.Logger) *Engine {
	if cfg == nil {
		c := config.DefaultConfig
		cfg = &c
	}
	e := &Engine{
		p:              p,
		cfg:            *cfg,
		log:            log.WithField("component", "nsenter"),
		handoffEnabled: bootstrap.Supported,
		selfArgs:       os.Args,
		reg:            NewRegistry(p),
		rel:            NewRelocation(),
		pidfd:          -1,
		envFD:          -1,
		credFD:         -1,
		cgroupFD:       -1,
		exeFD:          -1,
	}
	e.cgroup = NewCgroupJoiner(p, cfg.Paths.CgroupRoot, e.retry(), e.log)
	return e
}

func (e *Engine) retry() Retry {
	return Retry{Attempts: e.cfg.IO.RetryAttempts, Backoff: e.cfg.IO.RetryBackoff}
}

// Run performs the whole entry for opts. On success the process image is
// replaced, or with a supervisor the child's exit status is returned as
// an *errors.ExitStatus.
func (e *Engine) Run(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	e.opts = opts
	e.creds = Credentials{
		UID:      opts.UID,
		GID:      opts.GID,
		Preserve: opts.PreserveCredentials,
		KeepCaps: opts.KeepCaps,
	}
	e.res = NewResolver(e.p, e.cfg.Paths.ProcRoot, opts.Target)
	defer e.close()

	if err := e.prepare(); err != nil {
		return err
	}

	e.log.Debug("entering namespaces", "target", opts.Target, "namespaces", len(e.reg.Enabled()), "fork", e.fork)

	seq := e.sequencer()
	seq.BestEffort(e.pidfd)
	return e.continueStrict(seq, KindUser)
}

func (e *Engine) sequencer() *Sequencer {
	var handoff HandoffFunc
	if e.handoffEnabled {
		handoff = e.handoff
	}
	return NewSequencer(e.p, e.reg, e.log, handoff)
}

func (e *Engine) continueStrict(seq *Sequencer, start Kind) error {
	handedOff, err := seq.Strict(start)
	if err != nil || handedOff {
		return err
	}

	if e.pidfd >= 0 {
		_ = e.p.Close(e.pidfd)
		e.pidfd = -1
	}

	return e.finish()
}

// prepare opens every descriptor while the caller still sees the host
func (e *Engine) prepare() error {
	opts := &e.opts

	for _, ns := range opts.Namespaces {
		if err := e.reg.Enable(ns.Kind, ns.Path); err != nil {
			return err
		}
	}

	if opts.All {
		if opts.Target <= 0 {
			return _errors.Invalid("no target PID specified")
		}
		if err := e.res.EnableUsable(e.reg); err != nil {
			return err
		}
	}

	if opts.Target > 0 {
		fd, err := e.res.OpenPidfd()
		if err != nil {
			e.log.Debug("pidfd unavailable, using /proc descriptors", "error", err)
		} else {
			e.pidfd = fd
		}
	}

	if len(e.reg.WithoutFD()) > 0 || opts.NetSocket >= 0 || opts.UserParent {
		if opts.Target <= 0 {
			return _errors.Invalid("no target PID specified")
		}
		if err := e.res.ResolveDeferred(e.reg); err != nil {
			return err
		}
	}

	if opts.Root.Set {
		fd, err := e.res.OpenTarget("root", opts.Root.Path)
		if err != nil {
			return err
		}
		e.rel.RootFD = fd
	}
	if opts.WorkDir.Set {
		fd, err := e.res.OpenTarget("cwd", opts.WorkDir.Path)
		if err != nil {
			return err
		}
		e.rel.WorkDirFD = fd
	}
	e.rel.WorkDirNS = opts.WorkDirNS

	if opts.Env {
		fd, err := e.res.OpenTarget("environ", "")
		if err != nil {
			return err
		}
		e.envFD = fd
	}

	if opts.UID.Follow || opts.GID.Follow {
		fd, err := e.res.OpenTarget("", "")
		if err != nil {
			return err
		}
		e.credFD = fd
	}

	if opts.JoinCgroup {
		fd, err := e.cgroup.Open(e.res)
		if err != nil {
			return err
		}
		e.cgroupFD = fd
	}

	if opts.UserParent {
		if err := e.res.OpenParentUserNamespace(e.reg, e.pidfd); err != nil {
			return err
		}
	}

	if opts.NetSocket >= 0 {
		if err := e.res.OpenSocketNetns(e.reg, e.pidfd, opts.NetSocket); err != nil {
			return err
		}
	}

	if err := e.res.RejectOwnUserNamespace(e.reg); err != nil {
		return err
	}

	e.selected = e.reg.Mask()
	if e.selected == 0 {
		return _errors.Invalid("no namespace specified")
	}

	e.fork = e.selected&KindPID.Flag() != 0 && !opts.NoFork

	if e.selected&KindUser.Flag() != 0 {
		e.creds.ForUserNamespace(e.p, e.log)
	}

	if e.handoffEnabled && e.needsHandoff() {
		fd, err := e.p.OpenSelfExe()
		if err != nil {
			return _errors.Wrap("cannot open", "/proc/self/exe", err)
		}
		e.exeFD = fd
	}

	return nil
}

func (e *Engine) needsHandoff() bool {
	for _, k := range e.reg.Enabled() {
		if e.p.JoinNeedsHandoff(k.Flag()) {
			return true
		}
	}
	return false
}

// finish runs after every namespace has been joined
func (e *Engine) finish() error {
	if err := e.rel.SnapshotWorkDir(e.p); err != nil {
		return err
	}
	if err := e.rel.Apply(e.p); err != nil {
		return err
	}

	if e.envFD >= 0 {
		err := ImportEnviron(e.p, e.envFD, e.retry())
		_ = e.p.Close(e.envFD)
		e.envFD = -1
		if err != nil {
			return err
		}
	}

	if e.cgroupFD >= 0 {
		err := e.cgroup.Join(e.cgroupFD)
		_ = e.p.Close(e.cgroupFD)
		e.cgroupFD = -1
		if err != nil {
			return err
		}
	}

	if e.credFD >= 0 {
		err := e.creds.Follow(e.p, e.credFD)
		_ = e.p.Close(e.credFD)
		e.credFD = -1
		if err != nil {
			return err
		}
	}

	if e.exeFD >= 0 {
		_ = e.p.Close(e.exeFD)
		e.exeFD = -1
	}

	if e.fork {
		return e.spawn()
	}
	return e.execute()
}

func (e *Engine) keepCaps() bool {
	return e.creds.KeepCaps && e.selected&KindUser.Flag() != 0
}

func (e *Engine) lookPath() (string, error) {
	path, err := e.p.LookPath(e.opts.Args[0])
	if err != nil {
		return "", _errors.Wrap("failed to execute", e.opts.Args[0], err)
	}
	return path, nil
}

// spawn starts the program as a child in the joined PID namespace and
// supervises it. Group, GID, UID and ambient changes apply to the child.
func (e *Engine) spawn() error {
	e.creds.DropGroups(e.p, e.log)

	var ambient []uintptr
	if e.keepCaps() {
		raise, err := PrepareAmbient(e.p, CapLastCap(e.p, e.cfg.Paths.CapLastCap))
		if err != nil {
			return err
		}
		for _, c := range raise {
			ambient = append(ambient, uintptr(c))
		}
	}

	path, err := e.lookPath()
	if err != nil {
		return err
	}

	child, err := e.p.StartChild(platform.ChildSpec{
		Path:        path,
		Args:        e.opts.Args,
		Env:         e.p.Environ(),
		Credential:  e.creds.ChildCredential(e.p),
		AmbientCaps: ambient,
	})
	if err != nil {
		return _errors.Wrap("failed to execute", e.opts.Args[0], err)
	}

	return Supervise(e.p, child, e.log)
}

// execute replaces the process image with the program
func (e *Engine) execute() error {
	e.creds.DropGroups(e.p, e.log)
	if err := e.creds.Apply(e.p); err != nil {
		return err
	}

	if e.keepCaps() {
		raise, err := PrepareAmbient(e.p, CapLastCap(e.p, e.cfg.Paths.CapLastCap))
		if err != nil {
			return err
		}
		if err := RaiseAmbient(e.p, raise); err != nil {
			return err
		}
	}

	path, err := e.lookPath()
	if err != nil {
		return err
	}

	e.log.Debug("executing program", "path", path)
	if err := e.p.Exec(path, e.opts.Args, e.p.Environ()); err != nil {
		return _errors.Wrap("failed to execute", e.opts.Args[0], err)
	}
	return nil
}

// close releases descriptors left over on a failure path
func (e *Engine) close() {
	e.reg.Close()
	e.rel.Close(e.p)
	for _, fd := range []*int{&e.pidfd, &e.envFD, &e.credFD, &e.cgroupFD, &e.exeFD} {
		if *fd >= 0 {
			_ = e.p.Close(*fd)
			*fd = -1
		}
	}
}
