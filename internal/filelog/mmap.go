// Package filelog is a concrete, disk-backed beetree.Log: a single
// append-only file of length-prefixed blocks, read back through a
// memory-mapped view. Adapted from the teacher's pager package, which
// maps a database file the same way for random-access pages; here the
// mapping only ever grows, and reads are sequential-offset, not paged.
package filelog

// mmapFile is the platform-independent view; mmap_unix.go and
// mmap_windows.go each implement openMmap and the grow/sync/close methods.
type mmapFile struct {
	file interface{} // *os.File on Unix, windows.Handle-carrying struct on Windows
	data []byte
	size int64
}

func (m *mmapFile) Size() int64 { return m.size }

func (m *mmapFile) slice(offset, length int64) []byte {
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil
	}
	return m.data[offset : offset+length]
}
