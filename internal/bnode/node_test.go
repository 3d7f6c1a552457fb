package bnode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := &Node{
		ID:       7,
		ParentID: 3,
		IsLeaf:   true,
		NumKeys:  2,
	}
	n.Keys[0] = 10
	n.Keys[1] = 20
	n.SetRowAt(0, 100)
	n.SetRowAt(1, 200)

	got, err := Decode(n.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != n.ID || got.ParentID != n.ParentID || got.IsLeaf != n.IsLeaf || got.NumKeys != n.NumKeys {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, n)
	}
	if got.Keys != n.Keys || got.Children != n.Children {
		t.Fatalf("arrays mismatch after round trip")
	}
}

func TestEncodeInternalNode(t *testing.T) {
	n := NewInternal(5)
	n.ParentID = 1
	n.NumKeys = 1
	n.Keys[0] = 50
	n.SetChildID(0, 2)
	n.SetChildID(1, 3)

	got, err := Decode(n.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.IsLeaf {
		t.Fatalf("expected internal node, got leaf")
	}
	if got.ChildID(0) != 2 || got.ChildID(1) != 3 {
		t.Fatalf("child ids mismatch: %+v", got)
	}
}

func TestDecodeShortRecordErrors(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	if err == nil {
		t.Fatalf("expected error decoding short record")
	}
}

func TestSplitConstants(t *testing.T) {
	if SplitKeyIndex != 1 {
		t.Fatalf("SplitKeyIndex = %d, want 1 for Order=4", SplitKeyIndex)
	}
	if SplitNodeIndex != 2 {
		t.Fatalf("SplitNodeIndex = %d, want 2 for Order=4", SplitNodeIndex)
	}
}
