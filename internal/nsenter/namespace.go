package nsenter

import (
	"yawl/pkg/platform"
)

// Kind is a namespace type. The numeric order is the join order of the
// strict pass and must not change.
type Kind int

const (
	KindUser Kind = iota
	KindCgroup
	KindIPC
	KindUTS
	KindNet
	KindPID
	KindMount
	KindTime

	numKinds
)

type kindInfo struct {
	name  string // command line name
	entry string // entry below /proc/<pid>/
	flag  int
}

var kindTable = [numKinds]kindInfo{
	KindUser:   {name: "user", entry: "ns/user", flag: platform.CloneNewUser},
	KindCgroup: {name: "cgroup", entry: "ns/cgroup", flag: platform.CloneNewCgroup},
	KindIPC:    {name: "ipc", entry: "ns/ipc", flag: platform.CloneNewIPC},
	KindUTS:    {name: "uts", entry: "ns/uts", flag: platform.CloneNewUTS},
	KindNet:    {name: "net", entry: "ns/net", flag: platform.CloneNewNet},
	KindPID:    {name: "pid", entry: "ns/pid", flag: platform.CloneNewPID},
	KindMount:  {name: "mount", entry: "ns/mnt", flag: platform.CloneNewNS},
	KindTime:   {name: "time", entry: "ns/time", flag: platform.CloneNewTime},
}

// Kinds returns every namespace kind in join order
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// KindByName resolves a command line name such as "mount" or "net"
func KindByName(name string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindTable[k].name == name {
			return k, true
		}
	}
	return 0, false
}

// KindByFlag resolves a single CLONE_NEW* value
func KindByFlag(flag int) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindTable[k].flag == flag {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) valid() bool { return k >= 0 && k < numKinds }

// Name is the command line name, e.g. "mount"
func (k Kind) Name() string {
	if !k.valid() {
		return "unknown"
	}
	return kindTable[k].name
}

// Entry is the proc entry, e.g. "ns/mnt"
func (k Kind) Entry() string {
	if !k.valid() {
		return "ns/unknown"
	}
	return kindTable[k].entry
}

// Flag is the CLONE_NEW* value of the kind
func (k Kind) Flag() int {
	if !k.valid() {
		return 0
	}
	return kindTable[k].flag
}

func (k Kind) String() string { return k.Entry() }

// Slot tracks one namespace kind. FD is -1 while no descriptor is held.
// FromTarget marks descriptors opened below /proc/<target>/, which a
// pidfd batch join can satisfy as well.
type Slot struct {
	Kind       Kind
	FD         int
	Enabled    bool
	FromTarget bool
}

// Registry owns one slot per namespace kind for a single invocation
type Registry struct {
	p     platform.Platform
	slots [numKinds]Slot
}

// NewRegistry returns a registry with every slot disabled
func NewRegistry(p platform.Platform) *Registry {
	r := &Registry{p: p}
	for k := Kind(0); k < numKinds; k++ {
		r.slots[k] = Slot{Kind: k, FD: -1}
	}
	return r
}

// Slot returns a copy of the slot for k
func (r *Registry) Slot(k Kind) Slot {
	return r.slots[k]
}

// Enable marks k for joining and opens path right away when given.
// Without a path the descriptor is resolved later from the target.
func (r *Registry) Enable(k Kind, path string) error {
	if path == "" {
		r.slots[k].Enabled = true
		return nil
	}

	fd, err := openPath(r.p, path)
	if err != nil {
		return err
	}
	r.SetFD(k, fd, false)
	return nil
}

// SetFD hands fd to the slot, closing any descriptor it held, and enables it
func (r *Registry) SetFD(k Kind, fd int, fromTarget bool) {
	r.closeFD(k)
	r.slots[k].FD = fd
	r.slots[k].FromTarget = fromTarget
	r.slots[k].Enabled = true
}

// Disable closes the slot descriptor and clears the enabled flag
func (r *Registry) Disable(k Kind) {
	r.closeFD(k)
	r.slots[k].Enabled = false
	r.slots[k].FromTarget = false
}

func (r *Registry) closeFD(k Kind) {
	if r.slots[k].FD >= 0 {
		_ = r.p.Close(r.slots[k].FD)
		r.slots[k].FD = -1
	}
}

// Enabled returns the enabled kinds in join order
func (r *Registry) Enabled() []Kind {
	var out []Kind
	for k := Kind(0); k < numKinds; k++ {
		if r.slots[k].Enabled {
			out = append(out, k)
		}
	}
	return out
}

// WithoutFD returns enabled kinds that still lack a descriptor
func (r *Registry) WithoutFD() []Kind {
	var out []Kind
	for _, k := range r.Enabled() {
		if r.slots[k].FD < 0 {
			out = append(out, k)
		}
	}
	return out
}

// Mask ORs the clone flags of every enabled kind
func (r *Registry) Mask() int {
	mask := 0
	for _, k := range r.Enabled() {
		mask |= k.Flag()
	}
	return mask
}

// IsEnabled reports whether k still has to be joined
func (r *Registry) IsEnabled(k Kind) bool {
	return r.slots[k].Enabled
}

// Close releases every held descriptor
func (r *Registry) Close() {
	for k := Kind(0); k < numKinds; k++ {
		r.closeFD(k)
	}
}
