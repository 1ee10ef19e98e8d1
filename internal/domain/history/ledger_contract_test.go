package history

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

// runLedgerContract exercises behaviour every Ledger backend must share.
// newLedger must return an empty ledger.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) Ledger) {
	t.Run("SequentialIDs", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		id1, err := l.Append(ctx, Entry{ABHAID: "U1", SourceSystem: "NAM", SourceCode: "A1"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if id1 != "TRANS_0001" {
			t.Errorf("expected TRANS_0001, got %s", id1)
		}
		id2, err := l.Append(ctx, Entry{ABHAID: "U2", SourceSystem: "TM2", SourceCode: "T1"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if id2 != "TRANS_0002" {
			t.Errorf("expected TRANS_0002, got %s", id2)
		}
	})

	t.Run("ListByFiltersIdentity", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		if _, err := l.Append(ctx, Entry{ABHAID: "U1", SourceSystem: "NAM", SourceCode: "A1",
			TargetSystem: "ICD11_TM2", TargetCode: "T1", SNOMEDCode: "S1", LOINCCode: "L1"}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, err := l.Append(ctx, Entry{ABHAID: "U2", SourceSystem: "NAM", SourceCode: "A2"}); err != nil {
			t.Fatalf("append: %v", err)
		}

		got, err := l.ListBy(ctx, "U1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 entry for U1, got %d", len(got))
		}
		e := got[0]
		if e.ID != "TRANS_0001" || e.ABHAID != "U1" || e.SourceCode != "A1" || e.TargetSystem != "ICD11_TM2" ||
			e.TargetCode != "T1" || e.SNOMEDCode != "S1" || e.LOINCCode != "L1" {
			t.Errorf("unexpected entry %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("expected server-assigned timestamp")
		}
	})

	t.Run("ListByUnknownIdentityIsEmpty", func(t *testing.T) {
		l := newLedger(t)
		got, err := l.ListBy(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no entries, got %d", len(got))
		}
	})

	t.Run("ListByIsIdempotentAndOrdered", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			if _, err := l.Append(ctx, Entry{ABHAID: "U1", SourceCode: fmt.Sprintf("A%d", i)}); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		first, err := l.ListBy(ctx, "U1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		second, err := l.ListBy(ctx, "U1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(first) != 5 {
			t.Fatalf("expected 5 entries, got %d", len(first))
		}
		for i := range first {
			if first[i].SourceCode != fmt.Sprintf("A%d", i) {
				t.Errorf("entry %d out of insertion order: %s", i, first[i].SourceCode)
			}
			if !reflect.DeepEqual(stripTime(first[i]), stripTime(second[i])) ||
				!first[i].Timestamp.Equal(second[i].Timestamp) {
				t.Errorf("entry %d differs between reads: %+v vs %+v", i, first[i], second[i])
			}
		}
	})

	t.Run("ConcurrentAppendsGetContiguousIDs", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		const n = 40

		ids := make([]string, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = l.Append(ctx, Entry{ABHAID: fmt.Sprintf("U%d", i%3), SourceCode: fmt.Sprintf("C%d", i)})
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}
		sort.Strings(ids)
		for i, id := range ids {
			if want := FormatID(i + 1); id != want {
				t.Fatalf("expected ids 1..%d without gaps or duplicates; position %d is %s, want %s", n, i, id, want)
			}
		}

		total := 0
		for u := 0; u < 3; u++ {
			got, err := l.ListBy(ctx, fmt.Sprintf("U%d", u))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			total += len(got)
		}
		if total != n {
			t.Errorf("expected %d persisted entries, got %d", n, total)
		}
	})
}

func stripTime(e *Entry) Entry {
	c := *e
	c.Timestamp = time.Time{}
	return c
}
