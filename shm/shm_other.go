//go:build !linux

package shm

func (k SysV) Get(size int) (int, error)  { return 0, ErrUnsupported }
func (k SysV) Map(id int) ([]byte, error) { return nil, ErrUnsupported }
func (k SysV) Unmap(b []byte) error       { return ErrUnsupported }
func (k SysV) Remove(id int) error        { return ErrUnsupported }
