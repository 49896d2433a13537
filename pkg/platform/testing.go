package platform

import (
	"fmt"
	"sort"
	"strings"
	"syscall"
	"time"
)

// MockFile is an entry of the mock filesystem. Derived descriptors
// (pidfds, ioctl results) are looked up under synthetic names such as
// "pidfd:1234", "userns:/proc/1234/ns/mnt", "fd:5" or "netns:fd:5".
type MockFile struct {
	Data    []byte
	Stat    FileStat
	Magic   int64
	OpenErr error
}

// MockPlatform provides a mock implementation for testing
type MockPlatform struct {
	*BasePlatform

	Files       map[string]*MockFile
	Pid         int
	ChildPid    int
	Env         []string
	Caps        CapSet
	LastCap     int
	HandoffMask int

	// Mock behavior flags
	ShouldFailPidfd bool
	SetnsErrors     map[string]error // keyed by descriptor name
	Failures        map[string]error // keyed by operation name
	ReadErrors      []error          // returned once each before any data
	WriteErrors     []error
	MaxWrite        int // bytes accepted per Write, 0 means unlimited
	WaitStatuses    []WaitStatus

	// Call tracking
	Calls        []string
	SetnsCalls   []SetnsCall
	ExecCalls    []ExecCall
	KillCalls    []KillCall
	RaiseCalls   []syscall.Signal
	StartCalls   []ChildSpec
	Written      map[string][]byte
	Sleeps       []time.Duration
	Groups       []int
	UID          int
	GID          int
	Ambient      []int
	CloexecState map[int]bool

	fds     map[int]string
	offsets map[int]int
	nextFD  int
}

type SetnsCall struct {
	Path   string
	NsType int
}

type KillCall struct {
	PID    int
	Signal syscall.Signal
}

type ExecCall struct {
	Argv0 string
	Argv  []string
	Envv  []string

	// Inherited maps the descriptors without close-on-exec to their names
	Inherited map[int]string
}

// NewMockPlatform creates a new mock platform for testing
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		BasePlatform: NewBasePlatform(),
		Files:        make(map[string]*MockFile),
		Pid:          4242,
		ChildPid:     4243,
		LastCap:      40,
		SetnsErrors:  make(map[string]error),
		Failures:     make(map[string]error),
		Written:      make(map[string][]byte),
		UID:          -1,
		GID:          -1,
		CloexecState: make(map[int]bool),
		fds:          make(map[int]string),
		offsets:      make(map[int]int),
		nextFD:       10,
	}
}

// AddFile registers a file in the mock filesystem and returns it for
// further setup
func (mp *MockPlatform) AddFile(path string, data string) *MockFile {
	f := &MockFile{Data: []byte(data)}
	mp.Files[path] = f
	return f
}

// AddNamespace registers a namespace entry with the given inode
func (mp *MockPlatform) AddNamespace(path string, ino uint64) *MockFile {
	f := &MockFile{Stat: FileStat{Dev: 4, Ino: ino, Mode: syscall.S_IFREG}, Magic: 0x6e736673}
	mp.Files[path] = f
	return f
}

// Inherit registers fd as an open descriptor that survived an exec
func (mp *MockPlatform) Inherit(fd int, name string) {
	mp.fds[fd] = name
	mp.CloexecState[fd] = false
	if fd >= mp.nextFD {
		mp.nextFD = fd + 1
	}
}

// PathOf returns the name a descriptor was opened under
func (mp *MockPlatform) PathOf(fd int) string {
	return mp.fds[fd]
}

// OpenDescriptors lists the names of descriptors that were never closed
func (mp *MockPlatform) OpenDescriptors() []string {
	var names []string
	for _, name := range mp.fds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallsWithPrefix returns the tracked calls whose log entry starts with prefix
func (mp *MockPlatform) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range mp.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (mp *MockPlatform) record(format string, args ...interface{}) {
	mp.Calls = append(mp.Calls, fmt.Sprintf(format, args...))
}

func (mp *MockPlatform) fail(op string) error {
	if err, ok := mp.Failures[op]; ok {
		return err
	}
	return nil
}

func (mp *MockPlatform) allocate(name string) int {
	fd := mp.nextFD
	mp.nextFD++
	mp.fds[fd] = name
	mp.CloexecState[fd] = true
	return fd
}

func (mp *MockPlatform) lookup(fd int) (string, *MockFile, error) {
	name, ok := mp.fds[fd]
	if !ok {
		return "", nil, syscall.EBADF
	}
	return name, mp.Files[name], nil
}

func (mp *MockPlatform) open(op, path string) (int, error) {
	mp.record("%s %s", op, path)
	if err := mp.fail(op); err != nil {
		return -1, err
	}
	f, ok := mp.Files[path]
	if !ok {
		return -1, NewPlatformError("mock", op, syscall.ENOENT)
	}
	if f.OpenErr != nil {
		return -1, f.OpenErr
	}
	return mp.allocate(path), nil
}

func (mp *MockPlatform) OpenRead(path string) (int, error) {
	return mp.open("open", path)
}

func (mp *MockPlatform) OpenAppend(path string) (int, error) {
	return mp.open("open-append", path)
}

func (mp *MockPlatform) Close(fd int) error {
	if _, ok := mp.fds[fd]; !ok {
		return syscall.EBADF
	}
	delete(mp.fds, fd)
	delete(mp.offsets, fd)
	delete(mp.CloexecState, fd)
	return nil
}

func (mp *MockPlatform) Read(fd int, p []byte) (int, error) {
	_, f, err := mp.lookup(fd)
	if err != nil {
		return 0, err
	}
	if len(mp.ReadErrors) > 0 {
		err := mp.ReadErrors[0]
		mp.ReadErrors = mp.ReadErrors[1:]
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	off := mp.offsets[fd]
	n := copy(p, f.Data[off:])
	mp.offsets[fd] = off + n
	return n, nil
}

func (mp *MockPlatform) Write(fd int, p []byte) (int, error) {
	name, _, err := mp.lookup(fd)
	if err != nil {
		return 0, err
	}
	if len(mp.WriteErrors) > 0 {
		err := mp.WriteErrors[0]
		mp.WriteErrors = mp.WriteErrors[1:]
		return 0, err
	}
	n := len(p)
	if mp.MaxWrite > 0 && n > mp.MaxWrite {
		n = mp.MaxWrite
	}
	mp.record("write %s", name)
	mp.Written[name] = append(mp.Written[name], p[:n]...)
	return n, nil
}

func (mp *MockPlatform) ReadFile(path string) ([]byte, error) {
	mp.record("read %s", path)
	f, ok := mp.Files[path]
	if !ok {
		return nil, NewPlatformError("mock", "read", syscall.ENOENT)
	}
	return f.Data, nil
}

func (mp *MockPlatform) Fstat(fd int) (FileStat, error) {
	_, f, err := mp.lookup(fd)
	if err != nil {
		return FileStat{}, err
	}
	if f == nil {
		return FileStat{}, nil
	}
	return f.Stat, nil
}

func (mp *MockPlatform) Stat(path string) (FileStat, error) {
	if err := mp.fail("stat " + path); err != nil {
		return FileStat{}, err
	}
	f, ok := mp.Files[path]
	if !ok {
		return FileStat{}, NewPlatformError("mock", "stat", syscall.ENOENT)
	}
	return f.Stat, nil
}

func (mp *MockPlatform) Statfs(path string) (int64, error) {
	f, ok := mp.Files[path]
	if !ok {
		return 0, NewPlatformError("mock", "statfs", syscall.ENOENT)
	}
	return f.Magic, nil
}

func (mp *MockPlatform) Fstatfs(fd int) (int64, error) {
	_, f, err := mp.lookup(fd)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	return f.Magic, nil
}

func (mp *MockPlatform) SetCloexec(fd int, on bool) error {
	if _, ok := mp.fds[fd]; !ok {
		return syscall.EBADF
	}
	mp.CloexecState[fd] = on
	return nil
}

func (mp *MockPlatform) Setns(fd int, nstype int) error {
	name, _, err := mp.lookup(fd)
	if err != nil {
		return err
	}
	mp.record("setns %s", name)
	mp.SetnsCalls = append(mp.SetnsCalls, SetnsCall{Path: name, NsType: nstype})
	if err := mp.fail("setns"); err != nil {
		return err
	}
	if err, ok := mp.SetnsErrors[name]; ok {
		return err
	}
	return nil
}

func (mp *MockPlatform) Unshare(flags int) error {
	mp.record("unshare %#x", flags)
	return mp.fail("unshare")
}

func (mp *MockPlatform) JoinNeedsHandoff(nstype int) bool {
	return mp.HandoffMask&nstype != 0
}

func (mp *MockPlatform) PidfdOpen(pid int) (int, error) {
	mp.record("pidfd_open %d", pid)
	if mp.ShouldFailPidfd {
		return -1, syscall.ENOSYS
	}
	return mp.allocate(fmt.Sprintf("pidfd:%d", pid)), nil
}

func (mp *MockPlatform) PidfdGetfd(pidfd int, targetfd int) (int, error) {
	if _, _, err := mp.lookup(pidfd); err != nil {
		return -1, err
	}
	mp.record("pidfd_getfd %d", targetfd)
	if err := mp.fail("pidfd_getfd"); err != nil {
		return -1, err
	}
	return mp.allocate(fmt.Sprintf("fd:%d", targetfd)), nil
}

func (mp *MockPlatform) derive(op string, fd int, prefix string) (int, error) {
	name, _, err := mp.lookup(fd)
	if err != nil {
		return -1, err
	}
	mp.record("%s %s", op, name)
	if err := mp.fail(op); err != nil {
		return -1, err
	}
	return mp.allocate(prefix + name), nil
}

func (mp *MockPlatform) NsGetUserns(fd int) (int, error) {
	return mp.derive("ns_get_userns", fd, "userns:")
}

func (mp *MockPlatform) PidfdGetUserns(pidfd int) (int, error) {
	return mp.derive("pidfd_get_userns", pidfd, "userns:")
}

func (mp *MockPlatform) SocketNetns(sockfd int) (int, error) {
	return mp.derive("siocgskns", sockfd, "netns:")
}

func (mp *MockPlatform) Fchdir(fd int) error {
	name, _, err := mp.lookup(fd)
	if err != nil {
		return err
	}
	mp.record("fchdir %s", name)
	return mp.fail("fchdir")
}

func (mp *MockPlatform) Chdir(path string) error {
	mp.record("chdir %s", path)
	return mp.fail("chdir")
}

func (mp *MockPlatform) Chroot(path string) error {
	mp.record("chroot %s", path)
	return mp.fail("chroot")
}

func (mp *MockPlatform) Setgroups(gids []int) error {
	mp.record("setgroups %v", gids)
	if err := mp.fail("setgroups"); err != nil {
		return err
	}
	mp.Groups = append([]int{}, gids...)
	return nil
}

func (mp *MockPlatform) Setgid(gid int) error {
	mp.record("setgid %d", gid)
	if err := mp.fail("setgid"); err != nil {
		return err
	}
	mp.GID = gid
	return nil
}

func (mp *MockPlatform) Setuid(uid int) error {
	mp.record("setuid %d", uid)
	if err := mp.fail("setuid"); err != nil {
		return err
	}
	mp.UID = uid
	return nil
}

func (mp *MockPlatform) Capget() (CapSet, error) {
	if err := mp.fail("capget"); err != nil {
		return CapSet{}, err
	}
	return mp.Caps, nil
}

func (mp *MockPlatform) Capset(caps CapSet) error {
	mp.record("capset")
	if err := mp.fail("capset"); err != nil {
		return err
	}
	mp.Caps = caps
	return nil
}

func (mp *MockPlatform) AmbientRaise(capability int) error {
	if err := mp.fail("ambient"); err != nil {
		return err
	}
	mp.Ambient = append(mp.Ambient, capability)
	return nil
}

func (mp *MockPlatform) CapbsetRead(capability int) (bool, error) {
	if capability < 0 || capability > mp.LastCap {
		return false, syscall.EINVAL
	}
	return true, nil
}

func (mp *MockPlatform) Getpid() int {
	return mp.Pid
}

// Getuid returns the last UID set through Setuid, else 1000
func (mp *MockPlatform) Getuid() int {
	if mp.UID >= 0 {
		return mp.UID
	}
	return 1000
}

func (mp *MockPlatform) Getgid() int {
	if mp.GID >= 0 {
		return mp.GID
	}
	return 1000
}

func (mp *MockPlatform) Environ() []string {
	return append([]string{}, mp.Env...)
}

func (mp *MockPlatform) Clearenv() {
	mp.record("clearenv")
	mp.Env = nil
}

func (mp *MockPlatform) Setenv(key, value string) error {
	if err := mp.fail("setenv"); err != nil {
		return err
	}
	entry := key + "=" + value
	for i, kv := range mp.Env {
		if strings.HasPrefix(kv, key+"=") {
			mp.Env[i] = entry
			return nil
		}
	}
	mp.Env = append(mp.Env, entry)
	return nil
}

func (mp *MockPlatform) Unsetenv(key string) error {
	for i, kv := range mp.Env {
		if strings.HasPrefix(kv, key+"=") {
			mp.Env = append(mp.Env[:i], mp.Env[i+1:]...)
			break
		}
	}
	return nil
}

// Getenv is a test helper over the mock environment
func (mp *MockPlatform) Getenv(key string) (string, bool) {
	for _, kv := range mp.Env {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

func (mp *MockPlatform) LookPath(file string) (string, error) {
	if err := mp.fail("lookpath"); err != nil {
		return "", err
	}
	if strings.Contains(file, "/") {
		return file, nil
	}
	return "/usr/bin/" + file, nil
}

func (mp *MockPlatform) Exec(argv0 string, argv []string, envv []string) error {
	mp.record("exec %s", argv0)
	mp.ExecCalls = append(mp.ExecCalls, ExecCall{
		Argv0: argv0,
		Argv:  argv,
		Envv:  envv,
	})

	if err := mp.fail("exec"); err != nil {
		return NewPlatformError("mock", "exec", err)
	}

	return nil
}

func (mp *MockPlatform) OpenSelfExe() (int, error) {
	if err := mp.fail("exe"); err != nil {
		return -1, err
	}
	return mp.allocate("exe"), nil
}

func (mp *MockPlatform) Execveat(fd int, argv []string, envv []string) error {
	name, _, err := mp.lookup(fd)
	if err != nil {
		return err
	}
	mp.record("execveat %s", name)
	inherited := make(map[int]string)
	for open, n := range mp.fds {
		if !mp.CloexecState[open] {
			inherited[open] = n
		}
	}
	mp.ExecCalls = append(mp.ExecCalls, ExecCall{
		Argv0:     name,
		Argv:      argv,
		Envv:      envv,
		Inherited: inherited,
	})
	return mp.fail("execveat")
}

func (mp *MockPlatform) StartChild(spec ChildSpec) (int, error) {
	mp.record("start %s", spec.Path)
	mp.StartCalls = append(mp.StartCalls, spec)
	if err := mp.fail("fork"); err != nil {
		return -1, err
	}
	return mp.ChildPid, nil
}

func (mp *MockPlatform) Wait4(pid int) (WaitStatus, error) {
	if len(mp.WaitStatuses) == 0 {
		return WaitStatus{}, syscall.ECHILD
	}
	ws := mp.WaitStatuses[0]
	mp.WaitStatuses = mp.WaitStatuses[1:]
	return ws, nil
}

func (mp *MockPlatform) Kill(pid int, sig syscall.Signal) error {
	mp.record("kill %d %d", pid, int(sig))
	mp.KillCalls = append(mp.KillCalls, KillCall{
		PID:    pid,
		Signal: sig,
	})
	return mp.fail("kill")
}

func (mp *MockPlatform) Raise(sig syscall.Signal) error {
	mp.record("raise %d", int(sig))
	mp.RaiseCalls = append(mp.RaiseCalls, sig)
	return mp.fail("raise")
}

func (mp *MockPlatform) Sleep(d time.Duration) {
	mp.Sleeps = append(mp.Sleeps, d)
}
