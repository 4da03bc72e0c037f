package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Get creates a new private segment of size bytes and returns its id.
func (k SysV) Get(size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("shm: bad segment size %d", size)
	}
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|k.perm())
	if err != nil {
		return 0, fmt.Errorf("shmget %d bytes: %w", size, err)
	}
	return id, nil
}

// Map attaches segment id to the process and returns its memory.
func (k SysV) Map(id int) ([]byte, error) {
	b, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat %d: %w", id, err)
	}
	return b, nil
}

// Unmap detaches memory previously returned by Map.
func (k SysV) Unmap(b []byte) error {
	if err := unix.SysvShmDetach(b); err != nil {
		return fmt.Errorf("shmdt: %w", err)
	}
	return nil
}

// Remove marks segment id for destruction.
func (k SysV) Remove(id int) error {
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("shmctl %d IPC_RMID: %w", id, err)
	}
	return nil
}
