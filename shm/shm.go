// Package shm manages System V shared memory segments, the kind an X
// server can read directly through the MIT-SHM extension.
//
// A segment goes through Get, Map, (server attach), Remove, and finally
// Unmap. Remove only marks the segment: the kernel destroys it once the
// last process has unmapped it, so calling Remove as soon as every party
// is attached guarantees the segment cannot outlive its users.
package shm

import "errors"

// ErrUnsupported is returned on systems without System V shared memory.
var ErrUnsupported = errors.New("shm: System V shared memory not supported")

// SysV allocates segments with shmget(2) and shmat(2).
// The zero value is ready to use.
type SysV struct {
	// Perm is the permission mode of new segments.
	// If zero, 0600 is used.
	Perm int
}

func (k SysV) perm() int {
	if k.Perm == 0 {
		return 0600
	}
	return k.Perm
}
