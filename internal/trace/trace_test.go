package trace

import (
	"bytes"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := ExecutionTrace{
		GraphHash: "graph-abc",
		Events: []Event{
			{Kind: EventNodeExecuted, Node: "fit", Reason: ReasonCacheMiss},
			{Kind: EventNodeCached, Node: "reduce", Reason: ReasonCacheHit},
			{Kind: EventNodeSkipped, Node: "predict", Reason: ReasonUpstreamFailed, Cause: "fit"},
		},
	}
	trace2 := ExecutionTrace{
		GraphHash: "graph-abc",
		Events: []Event{
			{Kind: EventNodeSkipped, Node: "predict", Cause: "fit", Reason: ReasonUpstreamFailed},
			{Kind: EventNodeCached, Node: "reduce", Reason: ReasonCacheHit},
			{Kind: EventNodeExecuted, Node: "fit", Reason: ReasonCacheMiss},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", b1, b2)
	}
}

func TestCanonicalOrdering_SortsByNodeThenKind(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "g",
		Events: []Event{
			{Kind: EventNodeStored, Node: "b", Fingerprint: "f1"},
			{Kind: EventNodeExecuted, Node: "b"},
			{Kind: EventNodeExecuted, Node: "a"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"graphHash":"g","events":[{"kind":"NodeExecuted","node":"a"},{"kind":"NodeExecuted","node":"b"},{"kind":"NodeStored","node":"b","fingerprint":"f1"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, b)
	}
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "g",
		Events:    []Event{{Kind: EventNodeExecuted, Node: "b"}, {Kind: EventNodeExecuted, Node: "a"}},
	}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if tr.Events[0].Node != "b" {
		t.Fatalf("caller events were reordered")
	}
}

func TestHash_IgnoresInsertionOrder(t *testing.T) {
	tr1 := ExecutionTrace{
		GraphHash: "g",
		Events: []Event{
			{Kind: EventNodeExecuted, Node: "b", Reason: ReasonCacheMiss},
			{Kind: EventNodeCached, Node: "a", Reason: ReasonCacheHit},
		},
	}
	tr2 := ExecutionTrace{
		GraphHash: "g",
		Events: []Event{
			{Kind: EventNodeCached, Node: "a", Reason: ReasonCacheHit},
			{Kind: EventNodeExecuted, Node: "b", Reason: ReasonCacheMiss},
		},
	}
	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected equal hash, got %q != %q", h1, h2)
	}
}

func TestValidate_RejectsIncompleteEvents(t *testing.T) {
	cases := []ExecutionTrace{
		{Events: []Event{{Kind: EventNodeExecuted, Node: "a"}}},
		{GraphHash: "g", Events: []Event{{Kind: "Teleported", Node: "a"}}},
		{GraphHash: "g", Events: []Event{{Kind: EventNodeExecuted}}},
	}
	for i, tr := range cases {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

type panickySink struct{}

func (panickySink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	SafeRecord(panickySink{}, Event{Kind: EventNodeExecuted, Node: "a"})
	SafeRecord(nil, Event{Kind: EventNodeExecuted, Node: "a"})
}

func TestRecorder_TraceIsCanonical(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventNodeExecuted, Node: "z"})
	r.Record(Event{Kind: EventNodeCached, Node: "a"})

	tr := r.Trace("g")
	if tr.Events[0].Node != "a" || tr.Events[1].Node != "z" {
		t.Fatalf("unexpected order: %+v", tr.Events)
	}
	if got := r.Snapshot(); got[0].Node != "z" {
		t.Fatalf("snapshot should keep recording order, got %+v", got)
	}
	if c := tr.Counts(); c[EventNodeExecuted] != 1 || c[EventNodeCached] != 1 {
		t.Fatalf("unexpected counts: %v", c)
	}
}
