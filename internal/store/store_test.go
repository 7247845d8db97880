package store

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/icza/mighty"
)

// testStoreContract exercises the Store contract. Both backends must pass
// it unchanged; session ids are random so runs against a shared backend
// never collide.
func testStoreContract(t *testing.T, st Store) {
	t.Helper()
	eq := mighty.Eq(t)
	ctx := context.Background()

	sidA := uuid.NewString()
	sidB := uuid.NewString()

	// missing key is absent, not an error
	_, ok, err := st.Get(ctx, sidA, "counter")
	eq(nil, err)
	eq(false, ok)

	// scalar round trip
	eq(nil, st.Set(ctx, sidA, "counter", "3", time.Minute))
	val, ok, err := st.Get(ctx, sidA, "counter")
	eq(nil, err)
	eq(true, ok)
	eq(KindString, val.Kind)
	eq("3", val.Str)

	// isolation: B never sees A's writes
	_, ok, err = st.Get(ctx, sidB, "counter")
	eq(nil, err)
	eq(false, ok)

	// list round trip, order preserved
	eq(nil, st.Append(ctx, sidA, "notes", []string{"p"}, time.Minute))
	eq(nil, st.Append(ctx, sidA, "notes", []string{"q"}, time.Minute))
	val, ok, err = st.Get(ctx, sidA, "notes")
	eq(nil, err)
	eq(true, ok)
	eq(KindList, val.Kind)
	eq(true, reflect.DeepEqual([]string{"p", "q"}, val.List))

	// keys enumerates both live entries
	keys, err := st.Keys(ctx, sidA)
	eq(nil, err)
	sort.Strings(keys)
	eq(true, reflect.DeepEqual([]string{"counter", "notes"}, keys))

	// copy preserves shape and content and reports the count
	copied, err := st.CopySession(ctx, sidA, sidB, time.Minute)
	eq(nil, err)
	eq(2, copied)
	val, ok, err = st.Get(ctx, sidB, "counter")
	eq(nil, err)
	eq(true, ok)
	eq("3", val.Str)
	val, ok, err = st.Get(ctx, sidB, "notes")
	eq(nil, err)
	eq(true, ok)
	eq(true, reflect.DeepEqual([]string{"p", "q"}, val.List))

	// copy is additive: a dst-only key survives, a shared key is overwritten
	eq(nil, st.Set(ctx, sidB, "extra", "kept", time.Minute))
	eq(nil, st.Set(ctx, sidA, "counter", "9", time.Minute))
	copied, err = st.CopySession(ctx, sidA, sidB, time.Minute)
	eq(nil, err)
	eq(2, copied)
	val, _, _ = st.Get(ctx, sidB, "counter")
	eq("9", val.Str)
	val, ok, err = st.Get(ctx, sidB, "extra")
	eq(nil, err)
	eq(true, ok)
	eq("kept", val.Str)

	// copying an empty source copies nothing and touches nothing
	copied, err = st.CopySession(ctx, uuid.NewString(), sidB, time.Minute)
	eq(nil, err)
	eq(0, copied)
	_, ok, _ = st.Get(ctx, sidB, "extra")
	eq(true, ok)

	// session ids include both sessions
	ids, err := st.SessionIDs(ctx)
	eq(nil, err)
	eq(true, containsAll(ids, sidA, sidB))

	// delete is idempotent
	eq(nil, st.Delete(ctx, sidA, "counter"))
	eq(nil, st.Delete(ctx, sidA, "counter"))
	_, ok, _ = st.Get(ctx, sidA, "counter")
	eq(false, ok)

	eq(nil, st.Ping(ctx))

	// cleanup for shared backends
	for _, sid := range []string{sidA, sidB} {
		keys, _ := st.Keys(ctx, sid)
		for _, k := range keys {
			_ = st.Delete(ctx, sid, k)
		}
	}
}

func testStoreExpiry(t *testing.T, st Store) {
	t.Helper()
	eq := mighty.Eq(t)
	ctx := context.Background()

	sid := uuid.NewString()

	eq(nil, st.Set(ctx, sid, "short", "x", 40*time.Millisecond))
	eq(nil, st.Set(ctx, sid, "long", "y", time.Minute))

	_, ok, err := st.Get(ctx, sid, "short")
	eq(nil, err)
	eq(true, ok)

	time.Sleep(80 * time.Millisecond)

	// expired entries are absent from reads and from enumeration
	_, ok, err = st.Get(ctx, sid, "short")
	eq(nil, err)
	eq(false, ok)
	keys, err := st.Keys(ctx, sid)
	eq(nil, err)
	eq(true, reflect.DeepEqual([]string{"long"}, keys))

	// copy skips expired entries too
	dst := uuid.NewString()
	copied, err := st.CopySession(ctx, sid, dst, time.Minute)
	eq(nil, err)
	eq(1, copied)

	_ = st.Delete(ctx, sid, "long")
	_ = st.Delete(ctx, dst, "long")
}

// testStoreCopyResetsTTL proves CopySession stamps the destination with
// the copy ttl instead of inheriting the source's expiry, in both
// directions.
func testStoreCopyResetsTTL(t *testing.T, st Store) {
	t.Helper()
	eq := mighty.Eq(t)
	ctx := context.Background()

	// long-lived source copied with a short ttl: dst expires, src survives
	src := uuid.NewString()
	dst := uuid.NewString()
	eq(nil, st.Set(ctx, src, "counter", "1", time.Minute))
	eq(nil, st.Append(ctx, src, "notes", []string{"p"}, time.Minute))

	copied, err := st.CopySession(ctx, src, dst, 40*time.Millisecond)
	eq(nil, err)
	eq(2, copied)
	_, ok, _ := st.Get(ctx, dst, "counter")
	eq(true, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok, _ = st.Get(ctx, dst, "counter")
	eq(false, ok)
	_, ok, _ = st.Get(ctx, dst, "notes")
	eq(false, ok)
	_, ok, _ = st.Get(ctx, src, "counter")
	eq(true, ok)

	// short-lived source copied with a long ttl: dst outlives src
	src2 := uuid.NewString()
	dst2 := uuid.NewString()
	eq(nil, st.Set(ctx, src2, "counter", "2", 40*time.Millisecond))

	copied, err = st.CopySession(ctx, src2, dst2, time.Minute)
	eq(nil, err)
	eq(1, copied)

	time.Sleep(80 * time.Millisecond)

	_, ok, _ = st.Get(ctx, src2, "counter")
	eq(false, ok)
	val, ok, _ := st.Get(ctx, dst2, "counter")
	eq(true, ok)
	eq("2", val.Str)

	for _, sid := range []string{src, dst, src2, dst2} {
		keys, _ := st.Keys(ctx, sid)
		for _, k := range keys {
			_ = st.Delete(ctx, sid, k)
		}
	}
}

func containsAll(haystack []string, needles ...string) bool {
	seen := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		seen[h] = true
	}
	for _, n := range needles {
		if !seen[n] {
			return false
		}
	}
	return true
}
