package protocol

import (
	"encoding/json"
	"testing"
)

func TestMemberKeepsWireBytes(t *testing.T) {
	in := `{"id":"Y","clientData":{"name":"browser"},"extra":[1,2]}`

	var m Member
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ID != "Y" {
		t.Fatalf("expected id Y, got %q", m.ID)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("expected %s, got %s", in, out)
	}
}

func TestMemberWithoutWireBytes(t *testing.T) {
	out, err := json.Marshal(Member{ID: "abc"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":"abc"}` {
		t.Fatalf("unexpected encoding: %s", out)
	}
}

func TestMemberSliceDecode(t *testing.T) {
	var members []Member
	data := `[{"id":"a"},{"id":"b","authData":{"role":"x"}}]`
	if err := json.Unmarshal([]byte(data), &members); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(members) != 2 || members[0].ID != "a" || members[1].ID != "b" {
		t.Fatalf("unexpected members: %+v", members)
	}
	if string(members[1].AuthData) != `{"role":"x"}` {
		t.Fatalf("unexpected auth data: %s", members[1].AuthData)
	}
}
