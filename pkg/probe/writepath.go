package probe

// WritePath selects how page writes reach the kernel. The set is closed:
// either the file is memory-mapped and writes are plain stores into the
// mapping, or every write is an explicit pwrite at an offset. The simulator
// is written once against Handle.Write and never inspects the path.
type WritePath int

const (
	// WritePathMapped writes by copying into a shared mapping of the file.
	// No syscall happens per write; durability depends entirely on the
	// configured barriers and the kernel's write-back timing.
	WritePathMapped WritePath = iota

	// WritePathPositional writes with pwrite at an explicit offset,
	// independent of the file position.
	WritePathPositional
)

// ParseWritePath maps the CLI token to a write path. Accepted tokens are
// "mmap" and "write".
func ParseWritePath(name string) (WritePath, error) {
	switch name {
	case "mmap":
		return WritePathMapped, nil
	case "write":
		return WritePathPositional, nil
	default:
		return 0, configErrorf("unknown write path %q (valid: mmap, write)", name)
	}
}

func (p WritePath) String() string {
	switch p {
	case WritePathMapped:
		return "mmap"
	case WritePathPositional:
		return "write"
	default:
		return "unknown"
	}
}
