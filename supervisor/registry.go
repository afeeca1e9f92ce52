package supervisor

// registry holds the two process-attribution maps described in the data
// model: pmap maps a descendant pid to the pid of the named process that
// owns it (flattened — every descendant points directly at the ancestor,
// not at its immediate parent), and rpmap maps a named process's pid to
// the ordered set of pids currently alive in its tree, including itself.
//
// Ported from ProcessRunner's pmap/rpmap in the runner core; kept as its
// own type here so the lookup/attribution logic can be unit tested
// without a kqueue.
type registry struct {
	pmap  map[int]int
	rpmap map[int][]int
}

func newRegistry() *registry {
	return &registry{
		pmap:  make(map[int]int),
		rpmap: make(map[int][]int),
	}
}

// seed registers pid as a freshly spawned named process: its own
// ancestor, alone in its own tree.
func (r *registry) seed(pid int) {
	r.rpmap[pid] = []int{pid}
}

// ancestor climbs pmap until no parent entry exists, returning pid
// itself if it has none (i.e. pid is already a named process).
func (r *registry) ancestor(pid int) int {
	for {
		parent, ok := r.pmap[pid]
		if !ok {
			return pid
		}
		pid = parent
	}
}

// onChild handles a NOTE_CHILD event: child is a new fork of parent.
// Because pmap is flattened, parent's ancestor (which may be parent
// itself, if parent is a named process) becomes child's ancestor
// directly.
func (r *registry) onChild(parent, child int) {
	anc := r.ancestor(parent)
	r.pmap[child] = anc
	r.rpmap[anc] = append(r.rpmap[anc], child)
}

// exit removes pid from the registry, returning its ancestor and whether
// the ancestor's tree is now empty (meaning the whole logical process has
// tree-exited).
func (r *registry) exit(pid int) (anc int, treeEmpty bool) {
	anc = r.ancestor(pid)
	delete(r.pmap, pid)

	live := r.rpmap[anc]
	for i, p := range live {
		if p == pid {
			live = append(live[:i], live[i+1:]...)
			break
		}
	}
	if len(live) == 0 {
		delete(r.rpmap, anc)
		return anc, true
	}
	r.rpmap[anc] = live
	return anc, false
}
