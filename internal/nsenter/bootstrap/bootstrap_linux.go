//go:build linux && cgo

package bootstrap

/*
#define _GNU_SOURCE
#include <errno.h>
#include <limits.h>
#include <sched.h>
#include <stdlib.h>

#define YAWL_MAX_JOINS 16

static int yawl_join_errno = -1;
static int yawl_join_failed = 0;

__attribute__((constructor)) static void yawl_join(void) {
	const char *req = getenv("_YAWL_NSENTER_JOIN");
	int fds[YAWL_MAX_JOINS], types[YAWL_MAX_JOINS], done[YAWL_MAX_JOINS];
	int n = 0, i;
	char *end;
	long v;

	if (req == NULL || *req == '\0')
		return;

	for (;;) {
		if (n == YAWL_MAX_JOINS)
			goto invalid;

		v = strtol(req, &end, 10);
		if (end == req || *end != ':' || v < 0 || v > INT_MAX)
			goto invalid;
		fds[n] = (int)v;

		req = end + 1;
		v = strtol(req, &end, 10);
		if (end == req || v <= 0 || v > INT_MAX)
			goto invalid;
		types[n] = (int)v;
		done[n] = 0;
		n++;

		if (*end == '\0')
			break;
		if (*end != ',')
			goto invalid;
		req = end + 1;
	}

	for (i = 0; i < n; i++)
		if (setns(fds[i], types[i]) == 0)
			done[i] = 1;

	for (i = 0; i < n; i++) {
		if (done[i])
			continue;
		if (setns(fds[i], types[i]) < 0) {
			yawl_join_errno = errno;
			yawl_join_failed = types[i];
			return;
		}
	}

	yawl_join_errno = 0;
	return;

invalid:
	yawl_join_errno = EINVAL;
}

static int yawl_join_result(void) { return yawl_join_errno; }
static int yawl_join_failed_type(void) { return yawl_join_failed; }
*/
import "C"

import "syscall"

// Supported is true when the constructor is linked in
const Supported = true

// Result reports whether a join was requested and how it ended
func Result() Outcome {
	rc := int(C.yawl_join_result())
	switch {
	case rc < 0:
		return Outcome{}
	case rc == 0:
		return Outcome{Requested: true}
	default:
		return Outcome{
			Requested: true,
			Failed:    int(C.yawl_join_failed_type()),
			Err:       syscall.Errno(rc),
		}
	}
}
