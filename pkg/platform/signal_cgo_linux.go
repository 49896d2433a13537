//go:build linux && cgo

package platform

/*
#include <errno.h>
#include <signal.h>
#include <string.h>

static int yawl_raise_default(int sig) {
	struct sigaction sa;
	sigset_t set;

	memset(&sa, 0, sizeof(sa));
	sa.sa_handler = SIG_DFL;
	sigemptyset(&sa.sa_mask);
	if (sigaction(sig, &sa, NULL) < 0)
		return errno;

	sigemptyset(&set);
	sigaddset(&set, sig);
	pthread_sigmask(SIG_UNBLOCK, &set, NULL);

	if (raise(sig) != 0)
		return errno;
	return 0;
}
*/
import "C"

import "syscall"

// raiseDefault resets the disposition behind the runtime's back, so
// signals the runtime would trap still terminate the process
func raiseDefault(sig syscall.Signal) error {
	if rc := C.yawl_raise_default(C.int(sig)); rc != 0 {
		return syscall.Errno(rc)
	}
	return nil
}
