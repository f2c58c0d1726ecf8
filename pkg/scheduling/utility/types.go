// Copyright 2016 The ksched Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utility

import (
	"sync"

	pb "github.com/flowsched/flowsched/pkg/proto"
)

// JobID, TaskID and ResourceID are opaque handles derived from the string
// UUIDs the outer scheduler assigns to descriptors. They are kept as
// integers here purely so the flow graph can key maps and node IDs on them
// cheaply; the descriptors themselves remain the source of truth.
type (
	JobID      uint64
	TaskID     uint64
	ResourceID uint64
	EquivClass uint64
)

// JobMap, TaskMap and ResourceMap are borrowed-pointer stores: the outer
// scheduler owns the lifetime of the descriptors, the scheduler core only
// ever holds pointers into these maps. They are safe for concurrent access
// because ingestion (pkg/eventbus) and the scheduling loop can race on
// lookups even though mutation itself happens only under the single
// scheduling lock.
type JobMap struct {
	mu sync.RWMutex
	m  map[JobID]*pb.JobDescriptor
}

func NewJobMap() *JobMap {
	return &JobMap{m: make(map[JobID]*pb.JobDescriptor)}
}

func (jm *JobMap) InsertIfNotPresent(id JobID, jd *pb.JobDescriptor) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if _, ok := jm.m[id]; ok {
		return false
	}
	jm.m[id] = jd
	return true
}

func (jm *JobMap) FindPtrOrNull(id JobID) *pb.JobDescriptor {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.m[id]
}

func (jm *JobMap) Delete(id JobID) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.m, id)
}

func (jm *JobMap) RLock()   { jm.mu.RLock() }
func (jm *JobMap) RUnlock() { jm.mu.RUnlock() }

// UnsafeGet returns the backing map without locking. Callers must hold
// RLock/Lock themselves; it exists for range-heavy call sites that already
// bracket their access with the map's own lock.
func (jm *JobMap) UnsafeGet() map[JobID]*pb.JobDescriptor { return jm.m }

type TaskMap struct {
	mu sync.RWMutex
	m  map[TaskID]*pb.TaskDescriptor
}

func NewTaskMap() *TaskMap {
	return &TaskMap{m: make(map[TaskID]*pb.TaskDescriptor)}
}

func (tm *TaskMap) InsertIfNotPresent(id TaskID, td *pb.TaskDescriptor) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if _, ok := tm.m[id]; ok {
		return false
	}
	tm.m[id] = td
	return true
}

func (tm *TaskMap) FindPtrOrNull(id TaskID) *pb.TaskDescriptor {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.m[id]
}

func (tm *TaskMap) Delete(id TaskID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.m, id)
}

func (tm *TaskMap) RLock()   { tm.mu.RLock() }
func (tm *TaskMap) RUnlock() { tm.mu.RUnlock() }

func (tm *TaskMap) UnsafeGet() map[TaskID]*pb.TaskDescriptor { return tm.m }

type ResourceMap struct {
	mu sync.RWMutex
	m  map[ResourceID]*ResourceStatus
}

func NewResourceMap() *ResourceMap {
	return &ResourceMap{m: make(map[ResourceID]*ResourceStatus)}
}

func (rm *ResourceMap) InsertIfNotPresent(id ResourceID, rs *ResourceStatus) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.m[id]; ok {
		return false
	}
	rm.m[id] = rs
	return true
}

func (rm *ResourceMap) FindPtrOrNull(id ResourceID) *ResourceStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.m[id]
}

func (rm *ResourceMap) Delete(id ResourceID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.m, id)
}

func (rm *ResourceMap) RLock()   { rm.mu.RLock() }
func (rm *ResourceMap) RUnlock() { rm.mu.RUnlock() }

func (rm *ResourceMap) UnsafeGet() map[ResourceID]*ResourceStatus { return rm.m }
