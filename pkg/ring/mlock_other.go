//go:build !unix

package ring

// lockMemory is a no-op on non-unix platforms; mlock has no equivalent
// exercised here.
func lockMemory(buf []byte) {}
