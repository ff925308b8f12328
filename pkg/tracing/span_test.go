package tracing

import (
	"context"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "contact-search", "req-1")
	if SpanFromContext(ctx) != root {
		t.Fatal("root span not stored in context")
	}

	_, a := StartChildSpan(ctx, "clause")
	_, b := StartChildSpan(ctx, "clause")
	a.SetAttr("terms", []string{"maria"})
	a.End()
	b.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	for _, c := range root.Children {
		if c.TraceID != "req-1" {
			t.Errorf("child trace id = %q", c.TraceID)
		}
	}
	if root.Duration < 0 {
		t.Error("negative duration")
	}
	root.Log()
}

func TestStartSpanGeneratesTraceID(t *testing.T) {
	_, a := StartSpan(context.Background(), "x", "")
	_, b := StartSpan(context.Background(), "x", "")
	if len(a.TraceID) != 32 || a.TraceID == b.TraceID {
		t.Errorf("unexpected trace ids %q %q", a.TraceID, b.TraceID)
	}
}

func TestChildWithoutParent(t *testing.T) {
	_, s := StartChildSpan(context.Background(), "orphan")
	if s.TraceID != "" {
		t.Errorf("detached span got trace id %q", s.TraceID)
	}
}
