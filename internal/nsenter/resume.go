package nsenter

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"yawl/internal/nsenter/bootstrap"
	"yawl/pkg/config"
	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// StateEnv carries the engine state across a handoff; the join request
// itself travels in bootstrap.JoinEnv.
const StateEnv = "_YAWL_NSENTER_STATE"

const stateVersion = 2

// encMode uses Core Deterministic Encoding so that equal states encode
// to identical bytes
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("nsenter: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("nsenter: CBOR decoder initialization failed: " + err.Error())
	}
}

type slotState struct {
	Kind       Kind `cbor:"kind"`
	FD         int  `cbor:"fd"`
	Enabled    bool `cbor:"enabled"`
	FromTarget bool `cbor:"fromTarget"`
}

// State is what a handed-off image needs to finish the strict pass
type State struct {
	Version int           `cbor:"version"`
	Joining []Kind        `cbor:"joining"`
	Config  config.Config `cbor:"config"`
	Options Options       `cbor:"options"`
	Creds   Credentials   `cbor:"creds"`
	Slots   []slotState   `cbor:"slots"`

	Selected  int    `cbor:"selected"`
	Fork      bool   `cbor:"fork"`
	RootFD    int    `cbor:"rootFd"`
	WorkDirFD int    `cbor:"wdFd"`
	WorkDirNS string `cbor:"wdns"`
	EnvFD     int    `cbor:"envFd"`
	CredFD    int    `cbor:"credFd"`
	CgroupFD  int    `cbor:"cgroupFd"`
	ExeFD     int    `cbor:"exeFd"`
}

// descriptors lists every descriptor the state refers to
func (s *State) descriptors() []int {
	var fds []int
	for _, sl := range s.Slots {
		if sl.FD >= 0 {
			fds = append(fds, sl.FD)
		}
	}
	for _, fd := range []int{s.RootFD, s.WorkDirFD, s.EnvFD, s.CredFD, s.CgroupFD, s.ExeFD} {
		if fd >= 0 {
			fds = append(fds, fd)
		}
	}
	return fds
}

// EncodeState serializes s for StateEnv
func EncodeState(s *State) (string, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode handoff state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeState parses the value of StateEnv
func DecodeState(encoded string) (*State, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, _errors.Invalid("malformed handoff state: %v", err)
	}
	var s State
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, _errors.Invalid("malformed handoff state: %v", err)
	}
	if s.Version != stateVersion {
		return nil, _errors.Invalid("handoff state version %d, want %d", s.Version, stateVersion)
	}
	return &s, nil
}

func (e *Engine) snapshot(joining []Kind) *State {
	s := &State{
		Version:   stateVersion,
		Joining:   joining,
		Config:    e.cfg,
		Options:   e.opts,
		Creds:     e.creds,
		Selected:  e.selected,
		Fork:      e.fork,
		RootFD:    e.rel.RootFD,
		WorkDirFD: e.rel.WorkDirFD,
		WorkDirNS: e.rel.WorkDirNS,
		EnvFD:     e.envFD,
		CredFD:    e.credFD,
		CgroupFD:  e.cgroupFD,
		ExeFD:     e.exeFD,
	}
	for _, k := range Kinds() {
		sl := e.reg.Slot(k)
		s.Slots = append(s.Slots, slotState{
			Kind:       sl.Kind,
			FD:         sl.FD,
			Enabled:    sl.Enabled,
			FromTarget: sl.FromTarget,
		})
	}
	return s
}

// handoff re-executes the binary so that its pre-runtime bootstrap joins
// kinds while the process is still single threaded. Every held descriptor
// survives the exec; the pidfd is not needed past the first pass.
func (e *Engine) handoff(kinds []Kind) error {
	if len(kinds) == 0 || len(kinds) > bootstrap.MaxJoins {
		return _errors.Invalid("cannot hand off %d namespaces", len(kinds))
	}
	if e.exeFD < 0 {
		return _errors.New(_errors.ErrUnsupported, "no executable descriptor for handoff", "")
	}

	joins := make([]string, 0, len(kinds))
	for _, k := range kinds {
		slot := e.reg.Slot(k)
		if slot.FD < 0 {
			return _errors.New(_errors.ErrInvalidArgument, "no descriptor for", k.Entry())
		}
		joins = append(joins, fmt.Sprintf("%d:%d", slot.FD, k.Flag()))
	}

	if e.pidfd >= 0 {
		_ = e.p.Close(e.pidfd)
		e.pidfd = -1
	}

	state := e.snapshot(kinds)
	encoded, err := EncodeState(state)
	if err != nil {
		return err
	}

	fds := state.descriptors()
	for _, fd := range fds {
		if err := e.p.SetCloexec(fd, false); err != nil {
			e.restoreCloexec(fds)
			return _errors.Wrap("fcntl", "F_SETFD", err)
		}
	}

	env := make([]string, 0, len(e.p.Environ())+2)
	for _, kv := range e.p.Environ() {
		if strings.HasPrefix(kv, StateEnv+"=") || strings.HasPrefix(kv, bootstrap.JoinEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env,
		StateEnv+"="+encoded,
		bootstrap.JoinEnv+"="+strings.Join(joins, ","),
	)

	e.log.Debug("handing off to join namespaces before runtime start", "ns", kindEntries(kinds))
	err = e.p.Execveat(e.exeFD, e.selfArgs, env)
	e.restoreCloexec(fds)
	if err != nil {
		return _errors.Wrap("execveat", "/proc/self/exe", err)
	}
	return nil
}

func kindEntries(kinds []Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.Entry())
	}
	return strings.Join(names, ",")
}

func (e *Engine) restoreCloexec(fds []int) {
	for _, fd := range fds {
		_ = e.p.SetCloexec(fd, true)
	}
}

// Resume finishes an entry in an image started by handoff. out reports
// what the bootstrap did with the requested joins.
func Resume(p platform.Platform, state *State, out bootstrap.Outcome, log *logger.Logger) error {
	e := New(p, &state.Config, log)
	e.adopt(state)
	defer e.close()

	_ = p.Unsetenv(StateEnv)
	_ = p.Unsetenv(bootstrap.JoinEnv)

	if len(state.Joining) == 0 {
		return _errors.Invalid("handoff state names no namespace")
	}
	for _, k := range state.Joining {
		if !k.valid() {
			return _errors.Invalid("handoff state names unknown namespace %d", int(k))
		}
	}

	first := state.Joining[0]
	if !out.Requested {
		return &_errors.Error{
			Kind: _errors.ErrUnsupported,
			Op:   fmt.Sprintf("reassociate to namespace '%s' failed: pre-runtime join did not run", first.Entry()),
		}
	}
	if out.Err != nil {
		k, ok := KindByFlag(out.Failed)
		if !ok {
			return _errors.Invalid("pre-runtime join request rejected: %v", out.Err)
		}
		return fmt.Errorf("reassociate to namespace '%s' failed: %w", k.Entry(), _errors.Wrap("setns", k.Entry(), out.Err))
	}

	e.log.Debug("resumed after pre-runtime join", "ns", kindEntries(state.Joining))
	for _, k := range state.Joining {
		e.reg.Disable(k)
	}

	return e.continueStrict(e.sequencer(), state.Joining[len(state.Joining)-1]+1)
}

// adopt takes ownership of the descriptors named in the state and marks
// them close-on-exec again
func (e *Engine) adopt(s *State) {
	e.opts = s.Options
	e.creds = s.Creds
	e.selected = s.Selected
	e.fork = s.Fork
	e.res = NewResolver(e.p, e.cfg.Paths.ProcRoot, s.Options.Target)

	for _, sl := range s.Slots {
		if !sl.Kind.valid() {
			continue
		}
		e.reg.slots[sl.Kind] = Slot{
			Kind:       sl.Kind,
			FD:         sl.FD,
			Enabled:    sl.Enabled,
			FromTarget: sl.FromTarget,
		}
	}

	e.rel.RootFD = s.RootFD
	e.rel.WorkDirFD = s.WorkDirFD
	e.rel.WorkDirNS = s.WorkDirNS
	e.envFD = s.EnvFD
	e.credFD = s.CredFD
	e.cgroupFD = s.CgroupFD
	e.exeFD = s.ExeFD

	e.restoreCloexec(s.descriptors())
}
