package main

import "SoundOcclusion/occlusion"

// objectTable is the demo's host object store. It hands the occlusion engine
// poses and tells it when an object has been destroyed.
type objectTable struct {
	next  occlusion.Handle
	poses map[occlusion.Handle]occlusion.Pose
}

func newObjectTable() *objectTable {
	return &objectTable{poses: make(map[occlusion.Handle]occlusion.Pose)}
}

func (t *objectTable) spawn(pos occlusion.Vec3) occlusion.Handle {
	t.next++
	t.poses[t.next] = occlusion.Pose{Position: pos, Forward: occlusion.Forward, Up: occlusion.Up}
	return t.next
}

func (t *objectTable) destroy(h occlusion.Handle) {
	delete(t.poses, h)
}

func (t *objectTable) place(h occlusion.Handle, pos, forward occlusion.Vec3) {
	p, ok := t.poses[h]
	if !ok {
		return
	}
	p.Position = pos
	if forward != (occlusion.Vec3{}) {
		p.Forward = forward
	}
	t.poses[h] = p
}

func (t *objectTable) Alive(h occlusion.Handle) bool {
	_, ok := t.poses[h]
	return ok
}

func (t *objectTable) Pose(h occlusion.Handle) occlusion.Pose {
	return t.poses[h]
}
