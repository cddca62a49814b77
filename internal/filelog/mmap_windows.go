//go:build windows

package filelog

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsHandles struct {
	file      *os.File
	mapHandle windows.Handle
}

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

	mapHandle, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READWRITE,
		uint32(size>>32), uint32(size&0xFFFFFFFF), nil)
	if err != nil {
		f.Close()
		return nil, err
	}
	addr, err := windows.MapViewOfFile(mapHandle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapHandle)
		f.Close()
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &mmapFile{file: &windowsHandles{file: f, mapHandle: mapHandle}, data: data, size: size}, nil
}

func (m *mmapFile) grow(newSize int64) error {
	if newSize <= m.size {
		return nil
	}
	h := m.file.(*windowsHandles)
	windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0])))
	windows.CloseHandle(h.mapHandle)

	if err := h.file.Truncate(newSize); err != nil {
		return err
	}
	mapHandle, err := windows.CreateFileMapping(windows.Handle(h.file.Fd()), nil, windows.PAGE_READWRITE,
		uint32(newSize>>32), uint32(newSize&0xFFFFFFFF), nil)
	if err != nil {
		return err
	}
	addr, err := windows.MapViewOfFile(mapHandle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(newSize))
	if err != nil {
		windows.CloseHandle(mapHandle)
		return err
	}
	h.mapHandle = mapHandle
	m.data = unsafe.Slice((*byte)(unsafe.Pointer(addr)), newSize)
	m.size = newSize
	return nil
}

func (m *mmapFile) sync() error {
	if len(m.data) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data)))
}

func (m *mmapFile) close() error {
	var firstErr error
	h, _ := m.file.(*windowsHandles)
	if len(m.data) != 0 {
		if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0]))); err != nil && firstErr == nil {
			firstErr = err
		}
		m.data = nil
	}
	if h != nil {
		windows.CloseHandle(h.mapHandle)
		if err := h.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
