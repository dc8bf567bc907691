//go:build unix

package ring

import "golang.org/x/sys/unix"

// lockMemory best-effort page-locks buf so the ring's backing array is
// never paged out from under the realtime thread. Failure (commonly
// insufficient privilege) is not an error; the ring works fine, just
// without the locking guarantee.
func lockMemory(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Mlock(buf)
}
