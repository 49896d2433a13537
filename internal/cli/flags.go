package cli

import (
	"strconv"

	"github.com/spf13/pflag"

	"yawl/internal/nsenter"
	_errors "yawl/pkg/errors"
)

// fromTarget is what an optional-value flag receives when given bare,
// e.g. --mount rather than --mount=/path
const fromTarget = "@target"

// namespaceValue backs the per-kind flags such as --net[=file]
type namespaceValue struct {
	set  bool
	path string
}

func (v *namespaceValue) String() string { return v.path }

func (v *namespaceValue) Set(s string) error {
	v.set = true
	v.path = s
	if s == fromTarget {
		v.path = ""
	}
	return nil
}

func (v *namespaceValue) Type() string { return "file" }

// pathValue backs --root[=dir] and --wd[=dir]
type pathValue struct {
	req nsenter.PathRequest
}

func (v *pathValue) String() string { return v.req.Path }

func (v *pathValue) Set(s string) error {
	v.req = nsenter.PathRequest{Set: true, Path: s}
	if s == fromTarget {
		v.req.Path = ""
	}
	return nil
}

func (v *pathValue) Type() string { return "dir" }

// idValue backs --setuid and --setgid
type idValue struct {
	req nsenter.IDRequest
}

func (v *idValue) String() string {
	switch {
	case v.req.Follow:
		return "follow"
	case v.req.Set:
		return strconv.FormatUint(uint64(v.req.ID), 10)
	default:
		return ""
	}
}

func (v *idValue) Set(s string) error {
	req, err := nsenter.ParseID(s)
	if err != nil {
		return err
	}
	v.req = req
	return nil
}

func (v *idValue) Type() string { return "id" }

// pidValue backs --target and --enter
type pidValue struct {
	pid int
}

func (v *pidValue) String() string { return strconv.Itoa(v.pid) }

func (v *pidValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return _errors.Invalid("failed to parse pid %q", s)
	}
	v.pid = int(n)
	return nil
}

func (v *pidValue) Type() string { return "pid" }

// fdValue backs --net-socket
type fdValue struct {
	fd int
}

func (v *fdValue) String() string { return strconv.Itoa(v.fd) }

func (v *fdValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return _errors.Invalid("failed to parse file descriptor %q", s)
	}
	v.fd = int(n)
	return nil
}

func (v *fdValue) Type() string { return "fd" }

// entryFlags is the whole flag surface of the root command
type entryFlags struct {
	target     pidValue
	enter      pidValue
	all        bool
	namespaces [8]namespaceValue
	netSocket  fdValue
	userParent bool

	uid       idValue
	gid       idValue
	preserve  bool
	keepCaps  bool
	root      pathValue
	wd        pathValue
	wdns      string
	env       bool
	noFork    bool
	joinGroup bool

	configPath string
	logLevel   string
}

type namespaceFlag struct {
	kind      nsenter.Kind
	name      string
	shorthand string
}

var namespaceFlags = []namespaceFlag{
	{nsenter.KindMount, "mount", "m"},
	{nsenter.KindUTS, "uts", "u"},
	{nsenter.KindIPC, "ipc", "i"},
	{nsenter.KindNet, "net", "n"},
	{nsenter.KindPID, "pid", "p"},
	{nsenter.KindCgroup, "cgroup", "C"},
	{nsenter.KindUser, "user", "U"},
	{nsenter.KindTime, "time", "T"},
}

func optional(fs *pflag.FlagSet, name string) {
	fs.Lookup(name).NoOptDefVal = fromTarget
}

func (f *entryFlags) register(fs *pflag.FlagSet) {
	f.netSocket.fd = -1

	fs.VarP(&f.target, "target", "t", "target process to get namespaces from")
	fs.BoolVarP(&f.all, "all", "a", false, "enter all namespaces")

	for _, nf := range namespaceFlags {
		fs.VarP(&f.namespaces[nf.kind], nf.name, nf.shorthand, "enter "+nf.name+" namespace")
		optional(fs, nf.name)
	}

	fs.VarP(&f.netSocket, "net-socket", "N", "enter socket's network namespace (use with --target)")
	fs.BoolVar(&f.userParent, "user-parent", false, "enter parent user namespace")

	fs.VarP(&f.uid, "setuid", "S", "set uid in entered namespace (number or 'follow')")
	fs.VarP(&f.gid, "setgid", "G", "set gid in entered namespace (number or 'follow')")
	fs.BoolVar(&f.preserve, "preserve-credentials", false, "do not touch uids or gids")
	fs.BoolVar(&f.keepCaps, "keep-caps", false, "retain capabilities granted in user namespaces")

	fs.VarP(&f.root, "root", "r", "set the root directory")
	optional(fs, "root")
	fs.VarP(&f.wd, "wd", "w", "set the working directory")
	optional(fs, "wd")
	fs.StringVarP(&f.wdns, "wdns", "W", "", "set the working directory in namespace")
	fs.BoolVarP(&f.env, "env", "e", false, "inherit environment variables from target process")
	fs.BoolVarP(&f.noFork, "no-fork", "F", false, "do not fork before exec'ing <program>")
	fs.BoolVarP(&f.joinGroup, "join-cgroup", "c", false, "join the cgroup of the target process")

	fs.Var(&f.enter, "enter", "run in the same container as PID (implies --target, --user, --mount, --preserve-credentials)")

	fs.StringVar(&f.configPath, "config", "", "path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
}

// options turns the parsed flags and the program into engine options
func (f *entryFlags) options(fs *pflag.FlagSet, args []string) (nsenter.Options, error) {
	opts := nsenter.NewOptions()
	opts.Target = f.target.pid
	opts.All = f.all
	opts.NetSocket = f.netSocket.fd
	opts.UserParent = f.userParent
	opts.UID = f.uid.req
	opts.GID = f.gid.req
	opts.PreserveCredentials = f.preserve
	opts.KeepCaps = f.keepCaps
	opts.Root = f.root.req
	opts.WorkDir = f.wd.req
	opts.WorkDirNS = f.wdns
	opts.Env = f.env
	opts.NoFork = f.noFork
	opts.JoinCgroup = f.joinGroup
	opts.Args = args

	if f.enter.pid > 1 {
		if !fs.Changed("target") {
			opts.Target = f.enter.pid
		}
		opts.PreserveCredentials = true
		f.namespaces[nsenter.KindUser].set = true
		f.namespaces[nsenter.KindMount].set = true
	}

	if opts.NetSocket >= 0 && opts.Target <= 0 {
		return opts, _errors.Invalid("--net-socket requires --target")
	}

	for _, k := range nsenter.Kinds() {
		if v := f.namespaces[k]; v.set {
			opts.Namespaces = append(opts.Namespaces, nsenter.NamespaceRequest{Kind: k, Path: v.path})
		}
	}

	return opts, opts.Validate()
}
