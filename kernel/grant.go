package kernel

// A Grant holds one lazily allocated region of type T per process. Drivers
// keep per-process state in grants so that the kernel can reclaim the memory
// when the process goes away.
//
// The only way to touch a region is Enter, which scopes the access to one
// call: no reference to the region may escape. Enter fails cleanly when the
// target process's storage is unavailable, so a driver holding a stale
// ProcessID can probe it without crashing.
type Grant[T any] struct {
	kernel  *Kernel
	regions map[ProcessID]*T
}

// NewGrant allocates a grant backed by the given kernel's process table. The
// kernel releases the per-process regions on process teardown.
func NewGrant[T any](k *Kernel) *Grant[T] {
	g := &Grant[T]{
		kernel:  k,
		regions: make(map[ProcessID]*T),
	}

	k.addGrantRegion(g)

	return g
}

// Enter runs f on the region belonging to pid, allocating the region on
// first use. It returns ErrNoMem when the process is unknown or terminated.
func (g *Grant[T]) Enter(pid ProcessID, f func(state *T)) error {
	if !g.kernel.processIsLive(pid) {
		return ErrNoMem
	}

	region, ok := g.regions[pid]
	if !ok {
		region = new(T)
		g.regions[pid] = region
	}

	f(region)

	return nil
}

// release drops the region belonging to pid. Called by the kernel during
// process teardown.
func (g *Grant[T]) release(pid ProcessID) {
	delete(g.regions, pid)
}
