package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newTestPresence(t *testing.T) PresenceCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisPresence(rdb)
}

func TestPresence_AddAndListMembers(t *testing.T) {
	ctx := context.Background()
	p := newTestPresence(t)

	if err := p.AddMember(ctx, "doc1", 1, "amy", 10*time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, "doc1", 2, "bob", 10*time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %+v, want 2", members)
	}
	byID := map[uint64]string{}
	for _, m := range members {
		byID[m.UserID] = m.Username
	}
	if byID[1] != "amy" || byID[2] != "bob" {
		t.Fatalf("members = %+v", members)
	}
}

// score 存的是 expireAt，过去的时间点视为已过期并被懒清理。
func TestPresence_ExpiredMemberPruned(t *testing.T) {
	ctx := context.Background()
	p := newTestPresence(t)

	if err := p.AddMember(ctx, "doc1", 1, "amy", 10*time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, "doc1", 2, "bob", -time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames() error = %v", err)
	}
	if len(members) != 1 || members[0].UserID != 1 {
		t.Fatalf("members = %+v, want only user 1", members)
	}
}

func TestPresence_RemoveMember(t *testing.T) {
	ctx := context.Background()
	p := newTestPresence(t)

	if err := p.AddMember(ctx, "doc1", 1, "amy", 10*time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.SetCursor(ctx, "doc1", 1, []byte(`{"line":1}`), 10*time.Minute); err != nil {
		t.Fatalf("SetCursor() error = %v", err)
	}
	if err := p.RemoveMember(ctx, "doc1", 1); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames() error = %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("members = %+v, want empty", members)
	}
	if _, err := p.GetCursor(ctx, "doc1", 1); err != redis.Nil {
		t.Fatalf("GetCursor() error = %v, want redis.Nil", err)
	}
}

func TestPresence_Cursor(t *testing.T) {
	ctx := context.Background()
	p := newTestPresence(t)

	want := []byte(`{"line":3,"column":7}`)
	if err := p.SetCursor(ctx, "doc1", 1, want, time.Minute); err != nil {
		t.Fatalf("SetCursor() error = %v", err)
	}
	got, err := p.GetCursor(ctx, "doc1", 1)
	if err != nil {
		t.Fatalf("GetCursor() error = %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("GetCursor() = %s, want %s", got, want)
	}
}

func TestPresence_GetDocuments(t *testing.T) {
	ctx := context.Background()
	p := newTestPresence(t)

	for _, doc := range []string{"doc1", "doc2"} {
		if err := p.AddMember(ctx, doc, 1, "amy", 10*time.Minute); err != nil {
			t.Fatalf("AddMember(%s) error = %v", doc, err)
		}
	}
	docs, err := p.GetDocuments(ctx)
	if err != nil {
		t.Fatalf("GetDocuments() error = %v", err)
	}
	found := map[string]bool{}
	for _, d := range docs {
		found[d] = true
	}
	if !found["doc1"] || !found["doc2"] {
		t.Fatalf("GetDocuments() = %+v", docs)
	}
	// names Hash 不能被误认为文档
	if len(docs) != 2 {
		t.Fatalf("GetDocuments() = %+v, want exactly 2", docs)
	}
}
