// Package dimacs implements the ChangeLog the flow graph manager records
// between solver runs, and the DIMACS min-cost-flow text codec used to feed
// both the in-process and external solvers.
package dimacs

// ChangeType tags a Change with the specific reason it was made. Every value
// specializes one of the four wire-level DIMACS operations (add node, remove
// node, add arc, change arc); the extra granularity exists so ChangeStats and
// debug comments can say exactly what provoked a mutation.
type ChangeType int

const (
	AddSinkNode ChangeType = iota
	AddTaskNode
	AddResourceNode
	AddEquivClassNode
	AddUnschedJobNode

	DelTaskNode
	DelResourceNode
	DelEquivClassNode
	DelUnschedJobNode

	AddArcBetweenRes
	AddArcRunningTask
	AddArcBetweenEquivClass
	AddArcEquivClassToRes
	AddArcTaskToEquivClass
	AddArcTaskToRes
	AddArcToUnsched
	AddArcFromUnsched
	AddArcResToSink

	ChgArcBetweenRes
	ChgArcRunningTask
	ChgArcBetweenEquivClass
	ChgArcEquivClassToRes
	ChgArcTaskToEquivClass
	ChgArcTaskToRes
	ChgArcToUnsched
	ChgArcFromUnsched
	ChgArcResToSink

	DelArcEvictedTask
	DelArcTaskToEquivClass
	DelArcTaskToRes
	DelArcBetweenEquivClass
	DelArcEquivClassToRes
)

// Kind collapses a ChangeType down to the four wire-level DIMACS operations.
type Kind int

const (
	KindAddNode Kind = iota
	KindRemoveNode
	KindAddArc
	KindChangeArc
)

func (t ChangeType) Kind() Kind {
	switch {
	case t == AddSinkNode || t == AddTaskNode || t == AddResourceNode || t == AddEquivClassNode || t == AddUnschedJobNode:
		return KindAddNode
	case t == DelTaskNode || t == DelResourceNode || t == DelEquivClassNode || t == DelUnschedJobNode:
		return KindRemoveNode
	case t >= AddArcBetweenRes && t <= AddArcResToSink:
		return KindAddArc
	case t >= ChgArcBetweenRes && t <= ChgArcResToSink:
		return KindChangeArc
	default:
		// The five Del-arc-* types are surfaced as a capacity-zero ChangeArc
		// in the wire format (DIMACS has no explicit "remove arc" record);
		// see DeleteArc in flowmanager/change_manager.go.
		return KindChangeArc
	}
}

func (t ChangeType) String() string {
	switch t {
	case AddSinkNode:
		return "AddSinkNode"
	case AddTaskNode:
		return "AddTaskNode"
	case AddResourceNode:
		return "AddResourceNode"
	case AddEquivClassNode:
		return "AddEquivClassNode"
	case AddUnschedJobNode:
		return "AddUnschedJobNode"
	case DelTaskNode:
		return "DelTaskNode"
	case DelResourceNode:
		return "DelResourceNode"
	case DelEquivClassNode:
		return "DelEquivClassNode"
	case DelUnschedJobNode:
		return "DelUnschedJobNode"
	case AddArcBetweenRes:
		return "AddArcBetweenRes"
	case AddArcRunningTask:
		return "AddArcRunningTask"
	case AddArcBetweenEquivClass:
		return "AddArcBetweenEquivClass"
	case AddArcEquivClassToRes:
		return "AddArcEquivClassToRes"
	case AddArcTaskToEquivClass:
		return "AddArcTaskToEquivClass"
	case AddArcTaskToRes:
		return "AddArcTaskToRes"
	case AddArcToUnsched:
		return "AddArcToUnsched"
	case AddArcFromUnsched:
		return "AddArcFromUnsched"
	case AddArcResToSink:
		return "AddArcResToSink"
	case ChgArcBetweenRes:
		return "ChgArcBetweenRes"
	case ChgArcRunningTask:
		return "ChgArcRunningTask"
	case ChgArcBetweenEquivClass:
		return "ChgArcBetweenEquivClass"
	case ChgArcEquivClassToRes:
		return "ChgArcEquivClassToRes"
	case ChgArcTaskToEquivClass:
		return "ChgArcTaskToEquivClass"
	case ChgArcTaskToRes:
		return "ChgArcTaskToRes"
	case ChgArcToUnsched:
		return "ChgArcToUnsched"
	case ChgArcFromUnsched:
		return "ChgArcFromUnsched"
	case ChgArcResToSink:
		return "ChgArcResToSink"
	case DelArcEvictedTask:
		return "DelArcEvictedTask"
	case DelArcTaskToEquivClass:
		return "DelArcTaskToEquivClass"
	case DelArcTaskToRes:
		return "DelArcTaskToRes"
	case DelArcBetweenEquivClass:
		return "DelArcBetweenEquivClass"
	case DelArcEquivClassToRes:
		return "DelArcEquivClassToRes"
	default:
		return "Unknown"
	}
}

// Change is a single ChangeLog entry: an interface implemented by this
// file's NodeChange and ArcChange rather than a shared base struct.
// ExportIncremental and the change manager's GetOptimizedGraphChanges
// type-switch on it; Go does not check such a switch for exhaustiveness.
type Change interface {
	Type() ChangeType
	Comment() string
}

// NodeChange records an add-node or remove-node event. For a remove, only ID
// is meaningful; for an add, all fields describe the new node.
type NodeChange struct {
	ChangeType ChangeType
	ID         uint64
	Excess     int64
	Comment_   string
}

func (c *NodeChange) Type() ChangeType { return c.ChangeType }
func (c *NodeChange) Comment() string  { return c.Comment_ }

// ArcChange records an add-arc, change-arc or (as a capacity-zero
// change-arc) remove-arc event, mirroring the reference DIMACSChangeArc
// record.
type ArcChange struct {
	ChangeType    ChangeType
	Src           uint64
	Dst           uint64
	CapLowerBound uint64
	CapUpperBound uint64
	Cost          int64
	OldCost       int64
	Comment_      string
}

func (c *ArcChange) Type() ChangeType { return c.ChangeType }
func (c *ArcChange) Comment() string  { return c.Comment_ }
