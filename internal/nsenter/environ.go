package nsenter

import (
	"bytes"
	"errors"
	"syscall"
	"time"

	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

// EnvVar is one imported environment entry
type EnvVar struct {
	Name  string
	Value string
}

// Retry bounds the read/write helpers on transient errors
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

func (r Retry) attempts() int {
	if r.Attempts < 1 {
		return 1
	}
	return r.Attempts
}

func transient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

// readAll reads fd to EOF. Each transient error costs one attempt and a
// backoff sleep; any other error is returned immediately.
func readAll(p platform.Platform, fd int, retry Retry) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 4096)
	tries := 0

	for {
		n, err := p.Read(fd, buf)
		if err != nil {
			if transient(err) && tries+1 < retry.attempts() {
				tries++
				p.Sleep(retry.Backoff)
				continue
			}
			return nil, err
		}
		if n == 0 {
			return out.Bytes(), nil
		}
		out.Write(buf[:n])
	}
}

// writeAll writes all of data, looping on short writes and transient errors
func writeAll(p platform.Platform, fd int, data []byte, retry Retry) error {
	tries := 0
	for len(data) > 0 {
		n, err := p.Write(fd, data)
		if err != nil {
			if transient(err) && tries+1 < retry.attempts() {
				tries++
				p.Sleep(retry.Backoff)
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

// ParseEnviron splits a NUL separated environ blob. An entry without '='
// is rejected; empty records are skipped.
func ParseEnviron(blob []byte) ([]EnvVar, error) {
	var vars []EnvVar
	for _, rec := range bytes.Split(blob, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		i := bytes.IndexByte(rec, '=')
		if i <= 0 {
			return nil, _errors.Invalid("malformed environment entry %q", string(rec))
		}
		vars = append(vars, EnvVar{Name: string(rec[:i]), Value: string(rec[i+1:])})
	}
	return vars, nil
}

// ImportEnviron reads the target's environment from fd and replaces the
// process environment with it. Later duplicates override earlier ones.
func ImportEnviron(p platform.Platform, fd int, retry Retry) error {
	blob, err := readAll(p, fd, retry)
	if err != nil {
		return _errors.Wrap("failed to get environment variables", "", err)
	}

	vars, err := ParseEnviron(blob)
	if err != nil {
		return err
	}

	p.Clearenv()
	for _, v := range vars {
		if err := p.Setenv(v.Name, v.Value); err != nil {
			return _errors.Wrap("failed to set environment variable", v.Name, err)
		}
	}
	return nil
}
