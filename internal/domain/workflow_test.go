package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleWorkflow() *Workflow {
	return &Workflow{
		ID:   "wf-1",
		Name: "sample",
		Nodes: []NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "If1", Type: "if"},
			{Name: "TrueSetter", Type: "set"},
			{Name: "FalseSetter", Type: "set"},
		},
		Connections: []Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "If1", TargetInput: "main"},
			{SourceNode: "If1", SourceOutput: "true", TargetNode: "TrueSetter", TargetInput: "main"},
			{SourceNode: "If1", SourceOutput: "false", TargetNode: "FalseSetter", TargetInput: "main"},
		},
	}
}

func TestWorkflowNodeByName(t *testing.T) {
	wf := sampleWorkflow()
	n := wf.NodeByName("If1")
	assert.NotNil(t, n)
	assert.Equal(t, "if", n.Type)
	assert.Nil(t, wf.NodeByName("Missing"))
}

func TestWorkflowOutgoingConnections(t *testing.T) {
	wf := sampleWorkflow()
	out := wf.OutgoingConnections("If1", "true")
	assert.Len(t, out, 1)
	assert.Equal(t, "TrueSetter", out[0].TargetNode)
	assert.Empty(t, wf.OutgoingConnections("If1", "output2"))
}

func TestWorkflowIncomingConnections(t *testing.T) {
	wf := sampleWorkflow()
	in := wf.IncomingConnections("If1")
	assert.Len(t, in, 1)
	assert.Equal(t, "Start", in[0].SourceNode)
}

func TestFindStartNode(t *testing.T) {
	wf := sampleWorkflow()
	isTrigger := func(t string) bool { return t == "start" || t == "webhook" || t == "cron" }
	n := wf.FindStartNode(isTrigger)
	assert.NotNil(t, n)
	assert.Equal(t, "Start", n.Name)
	assert.Nil(t, wf.FindStartNode(func(string) bool { return false }))
}

func TestConnectionTargetInputOrMain(t *testing.T) {
	c := Connection{TargetInput: ""}
	assert.Equal(t, "main", c.TargetInputOrMain())
	c.TargetInput = "secondary"
	assert.Equal(t, "secondary", c.TargetInputOrMain())
}

func TestConnectionIsLoopBack(t *testing.T) {
	assert.True(t, Connection{SourceOutput: "loop"}.IsLoopBack())
	assert.False(t, Connection{SourceOutput: "main"}.IsLoopBack())
}

func TestPayloadDeadBranch(t *testing.T) {
	assert.True(t, IsDeadBranch(DeadBranch))
	items := ItemsPayload{{JSON: map[string]any{"a": 1}}}
	assert.False(t, IsDeadBranch(items))
	assert.Equal(t, []Item(items), Items(items))
	assert.Nil(t, Items(DeadBranch))
}
