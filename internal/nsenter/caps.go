package nsenter

import (
	"math"
	"strconv"
	"strings"

	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

func validCap(p platform.Platform, capability int) bool {
	_, err := p.CapbsetRead(capability)
	return err == nil
}

// capLastByProcfs trusts the sysctl file only when it really lives on
// procfs and the capability after the reported one is invalid
func capLastByProcfs(p platform.Platform, path string) (int, bool) {
	fd, err := p.OpenRead(path)
	if err != nil {
		return 0, false
	}
	defer p.Close(fd)

	magic, err := p.Fstatfs(fd)
	if err != nil || magic != platform.ProcSuperMagic {
		return 0, false
	}

	data, err := readAll(p, fd, Retry{Attempts: 1})
	if err != nil {
		return 0, false
	}
	capability, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || capability < 0 || capability >= math.MaxInt32 {
		return 0, false
	}
	if validCap(p, capability+1) {
		return 0, false
	}
	return capability, true
}

// capLastByBsearch probes PR_CAPBSET_READ; cap1 is always invalid
func capLastByBsearch(p platform.Platform) int {
	capability := math.MaxInt32
	cap0, cap1 := 0, math.MaxInt32

	for cap0 < capability {
		if validCap(p, capability) {
			cap0 = capability
		} else {
			cap1 = capability
		}
		capability = int((uint(cap0) + uint(cap1)) / 2)
	}
	return capability
}

// CapLastCap returns the highest capability number the kernel knows
func CapLastCap(p platform.Platform, path string) int {
	if capability, ok := capLastByProcfs(p, path); ok {
		return capability
	}
	return capLastByBsearch(p)
}

// PrepareAmbient makes the permitted set inheritable and returns every
// effective capability up to lastCap. Those are the ones to raise into
// the ambient set.
func PrepareAmbient(p platform.Platform, lastCap int) ([]int, error) {
	caps, err := p.Capget()
	if err != nil {
		return nil, _errors.Wrap("capget failed", "", err)
	}

	caps.Inheritable = caps.Permitted
	if err := p.Capset(caps); err != nil {
		return nil, _errors.Wrap("capset failed", "", err)
	}

	var raise []int
	for capability := 0; capability < 64; capability++ {
		if capability > lastCap {
			break
		}
		if platform.Has(caps.Effective, capability) {
			raise = append(raise, capability)
		}
	}
	return raise, nil
}

// RaiseAmbient raises each capability into the ambient set of the
// calling thread; the first failure is fatal
func RaiseAmbient(p platform.Platform, raise []int) error {
	for _, capability := range raise {
		if err := p.AmbientRaise(capability); err != nil {
			return _errors.Wrap("prctl(PR_CAP_AMBIENT) failed", "", err)
		}
	}
	return nil
}
