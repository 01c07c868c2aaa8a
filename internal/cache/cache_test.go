package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, err := mc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(val) != "v" {
		t.Errorf("value = %q, want v", val)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	if _, err := mc.Get(context.Background(), "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := mc.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss for expired entry", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Error("expired entry reported as existing")
	}
}

func TestMemoryCacheClearPrefix(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "query:PACS:study:aa", []byte("1"), time.Minute)
	mc.Set(ctx, "query:PACS:series:bb", []byte("2"), time.Minute)
	mc.Set(ctx, "query:OTHER:study:cc", []byte("3"), time.Minute)

	if err := mc.Clear(ctx, "query:PACS:*"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if ok, _ := mc.Exists(ctx, "query:PACS:study:aa"); ok {
		t.Error("cleared key still present")
	}
	if ok, _ := mc.Exists(ctx, "query:OTHER:study:cc"); !ok {
		t.Error("unrelated key was cleared")
	}
}

func TestQueryKeyLayout(t *testing.T) {
	key := QueryKey("PACS", "STUDY", "abcd1234")
	if key != "query:PACS:study:abcd1234" {
		t.Errorf("key = %q", key)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint([]string{"PatientID", "123", "StudyDate", ""})
	b := Fingerprint([]string{"PatientID", "123", "StudyDate", ""})
	if a != b {
		t.Error("identical inputs gave different fingerprints")
	}
	if len(a) != 16 || strings.ToLower(a) != a {
		t.Errorf("fingerprint %q is not 16 lowercase hex chars", a)
	}

	// Separator-aware: "ab"+"c" must not collide with "a"+"bc".
	if Fingerprint([]string{"ab", "c"}) == Fingerprint([]string{"a", "bc"}) {
		t.Error("fingerprint ignores value boundaries")
	}
}
