//go:build unix || darwin || linux || freebsd || openbsd || netbsd

package filelog

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func openMmap(path string, initialSize int64) (*mmapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := stat.Size()
	if initialSize > size {
		if err := f.Truncate(initialSize); err != nil {
			f.Close()
			return nil, err
		}
		size = initialSize
	}
	if size == 0 {
		f.Close()
		return nil, errors.New("filelog: cannot mmap an empty file")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mmapFile{file: f, data: data, size: size}, nil
}

func (m *mmapFile) grow(newSize int64) error {
	if newSize <= m.size {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return err
	}
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	f := m.file.(*os.File)
	if err := f.Truncate(newSize); err != nil {
		return err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	m.data = data
	m.size = newSize
	return nil
}

func (m *mmapFile) sync() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mmapFile) close() error {
	var firstErr error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil && firstErr == nil {
			firstErr = err
		}
		m.data = nil
	}
	if f, ok := m.file.(*os.File); ok {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
