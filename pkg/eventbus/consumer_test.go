package eventbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flowsched/flowsched/pkg/proto"
)

// fakeServer records which method was called instead of running any real
// scheduling logic, so apply's routing can be tested without a broker.
type fakeServer struct {
	proto.FirmamentSchedulerServer
	calls []string
}

func (f *fakeServer) TaskSubmitted(context.Context, *proto.TaskDescription) (*proto.TaskSubmittedResponse, error) {
	f.calls = append(f.calls, "TaskSubmitted")
	return &proto.TaskSubmittedResponse{Type: proto.TaskReplyType_TASK_SUBMITTED_OK}, nil
}

func (f *fakeServer) TaskCompleted(context.Context, *proto.TaskUID) (*proto.TaskCompletedResponse, error) {
	f.calls = append(f.calls, "TaskCompleted")
	return &proto.TaskCompletedResponse{Type: proto.TaskReplyType_TASK_COMPLETED_OK}, nil
}

func (f *fakeServer) NodeAdded(context.Context, *proto.ResourceTopologyNodeDescriptor) (*proto.NodeAddedResponse, error) {
	f.calls = append(f.calls, "NodeAdded")
	return &proto.NodeAddedResponse{Type: proto.NodeReplyType_NODE_ADDED_OK}, nil
}

func TestApplyRoutesByEventKind(t *testing.T) {
	fake := &fakeServer{}
	c := &Consumer{server: fake}

	taskPayload, _ := json.Marshal(proto.TaskDescription{
		TaskDescriptor: &proto.TaskDescriptor{Uid: 1, JobId: "1"},
		JobDescriptor:  &proto.JobDescriptor{Uuid: "1"},
	})
	envelope, _ := json.Marshal(Event{Kind: EventTaskSubmitted, Payload: taskPayload})
	if err := c.apply(context.Background(), envelope); err != nil {
		t.Fatalf("apply task_submitted: %v", err)
	}

	uidPayload, _ := json.Marshal(proto.TaskUID{TaskUid: 1})
	envelope, _ = json.Marshal(Event{Kind: EventTaskCompleted, Payload: uidPayload})
	if err := c.apply(context.Background(), envelope); err != nil {
		t.Fatalf("apply task_completed: %v", err)
	}

	rtndPayload, _ := json.Marshal(proto.ResourceTopologyNodeDescriptor{
		ResourceDesc: &proto.ResourceDescriptor{Uuid: "1"},
	})
	envelope, _ = json.Marshal(Event{Kind: EventNodeAdded, Payload: rtndPayload})
	if err := c.apply(context.Background(), envelope); err != nil {
		t.Fatalf("apply node_added: %v", err)
	}

	want := []string{"TaskSubmitted", "TaskCompleted", "NodeAdded"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	for i, name := range want {
		if fake.calls[i] != name {
			t.Fatalf("calls[%d] = %s, want %s", i, fake.calls[i], name)
		}
	}
}

func TestApplyUnknownKindErrors(t *testing.T) {
	c := &Consumer{server: &fakeServer{}}
	envelope, _ := json.Marshal(Event{Kind: "not_a_real_kind"})
	if err := c.apply(context.Background(), envelope); err == nil {
		t.Fatalf("expected error for unknown event kind")
	}
}
