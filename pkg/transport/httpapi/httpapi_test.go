package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowsched/flowsched/pkg/firmamentservice"
	"github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/flowscheduler"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	server, err := firmamentservice.NewSchedulerServer(flowscheduler.Config{
		CostModelType:      costmodel.CostModelTrivial,
		MaxTasksPerMachine: 1,
	})
	if err != nil {
		t.Fatalf("NewSchedulerServer: %v", err)
	}
	return NewHandler(server)
}

func TestNodeAddedThenTaskSubmittedThenSchedule(t *testing.T) {
	h := newTestHandler(t)

	rtnd := proto.ResourceTopologyNodeDescriptor{
		ResourceDesc: &proto.ResourceDescriptor{
			Uuid:        "1",
			Type:        proto.ResourceDescriptor_RESOURCE_MACHINE,
			Schedulable: true,
			ResourceCapacity: &proto.ResourceVector{
				CpuCores: 8,
				RamCap:   16384,
			},
			AvailableResources: &proto.ResourceVector{
				CpuCores: 8,
				RamCap:   16384,
			},
		},
	}
	body, _ := json.Marshal(rtnd)
	req := httptest.NewRequest(http.MethodPost, "/nodes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("NodeAdded: status %d, body %s", rec.Code, rec.Body.String())
	}
	var nodeResp proto.NodeAddedResponse
	if err := json.NewDecoder(rec.Body).Decode(&nodeResp); err != nil {
		t.Fatalf("decoding NodeAdded response: %v", err)
	}
	if nodeResp.Type != proto.NodeReplyType_NODE_ADDED_OK {
		t.Fatalf("unexpected NodeAdded reply: %v", nodeResp.Type)
	}

	taskDesc := proto.TaskDescription{
		JobDescriptor: &proto.JobDescriptor{Uuid: "10", Name: "job"},
		TaskDescriptor: &proto.TaskDescriptor{
			Uid:             101,
			JobId:           "10",
			ResourceRequest: &proto.ResourceVector{CpuCores: 2, RamCap: 2048},
		},
	}
	body, _ = json.Marshal(taskDesc)
	req = httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("TaskSubmitted: status %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/schedule", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Schedule: status %d, body %s", rec.Code, rec.Body.String())
	}
	var deltas proto.SchedulingDeltas
	if err := json.NewDecoder(rec.Body).Decode(&deltas); err != nil {
		t.Fatalf("decoding Schedule response: %v", err)
	}
	if len(deltas.Deltas) == 0 {
		t.Fatalf("expected at least one scheduling delta")
	}
}

func TestTaskRemovedUnknownTask(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/tasks/999", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("TaskRemoved: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp proto.TaskRemovedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding TaskRemoved response: %v", err)
	}
	if resp.Type != proto.TaskReplyType_TASK_NOT_FOUND {
		t.Fatalf("expected TASK_NOT_FOUND, got %v", resp.Type)
	}
}
