package store

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/premsagar/subscription-service/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestMemoryStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testLogger())

	_, ok, err := s.Get(ctx, "subscriptions", "user-1", ReadStrong)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("Get on empty store must report no record")
	}

	inserted, err := s.PutIfAbsent(ctx, "subscriptions", "user-1", Record{"plan_type": "monthly"})
	if err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert must succeed")
	}

	inserted, err = s.PutIfAbsent(ctx, "subscriptions", "user-1", Record{"plan_type": "yearly"})
	if err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if inserted {
		t.Fatalf("second insert on the same key must be rejected")
	}

	rec, ok, err := s.Get(ctx, "subscriptions", "user-1", ReadEventual)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec["plan_type"] != "monthly" {
		t.Fatalf("plan_type = %v, want monthly (losing insert must not overwrite)", rec["plan_type"])
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testLogger())
	if _, err := s.PutIfAbsent(ctx, "b", "k", Record{"v": "original"}); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	rec, _, _ := s.Get(ctx, "b", "k", ReadStrong)
	rec["v"] = "mutated"

	rec2, _, _ := s.Get(ctx, "b", "k", ReadStrong)
	if rec2["v"] != "original" {
		t.Fatalf("mutating a returned record must not leak into the store")
	}
}

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testLogger())
	if _, err := s.PutIfAbsent(ctx, "transactions", "order-1", Record{"transaction_status": "pending", "amount": "1000"}); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	// Условие не выполнено — никаких изменений
	applied, err := s.Update(ctx, "transactions", "order-1",
		Cond{"transaction_status": "success"}, Updates{"transaction_status": "failed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if applied {
		t.Fatalf("update with a failing condition must not apply")
	}

	applied, err = s.Update(ctx, "transactions", "order-1",
		Cond{"transaction_status": "pending"}, Updates{"transaction_status": "success", "payment_id": "pay-1"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !applied {
		t.Fatalf("update with a matching condition must apply")
	}

	rec, _, _ := s.Get(ctx, "transactions", "order-1", ReadStrong)
	if rec["transaction_status"] != "success" || rec["payment_id"] != "pay-1" {
		t.Fatalf("record after update = %v", rec)
	}
	if rec["amount"] != "1000" {
		t.Fatalf("untouched fields must survive the update, got %v", rec["amount"])
	}

	applied, _ = s.Update(ctx, "transactions", "missing", Cond{}, Updates{"x": "y"})
	if applied {
		t.Fatalf("update of a missing key must not apply")
	}
}

func TestMemoryStoreConditionalUpdateRace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testLogger())
	if _, err := s.PutIfAbsent(ctx, "transactions", "order-1", Record{"transaction_status": "pending"}); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		outcome := "success"
		if i%2 == 1 {
			outcome = "failed"
		}
		wg.Add(1)
		go func(outcome string) {
			defer wg.Done()
			applied, err := s.Update(ctx, "transactions", "order-1",
				Cond{"transaction_status": "pending"}, Updates{"transaction_status": outcome})
			if err == nil && applied {
				wins <- outcome
			}
		}(outcome)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("exactly one concurrent CAS must win, got %d", len(winners))
	}

	rec, _, _ := s.Get(ctx, "transactions", "order-1", ReadStrong)
	if rec["transaction_status"] != winners[0] {
		t.Fatalf("final status %v does not match the winning update %v", rec["transaction_status"], winners[0])
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testLogger())

	for i := 0; i < 3; i++ {
		rec := Record{
			"user_id":    "user-1",
			"created_at": fmt.Sprintf("2025-03-10T12:00:0%d.000000000Z", i),
		}
		if _, err := s.PutIfAbsent(ctx, "subscriptions", fmt.Sprintf("sub-%d", i), rec); err != nil {
			t.Fatalf("PutIfAbsent: %v", err)
		}
	}
	if _, err := s.PutIfAbsent(ctx, "subscriptions", "other", Record{"user_id": "user-2", "created_at": "2025-03-10T12:00:09.000000000Z"}); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	recs, err := s.Query(ctx, "subscriptions", "user_id", "user-1", true, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2 (limit)", len(recs))
	}
	if recs[0]["created_at"].(string) < recs[1]["created_at"].(string) {
		t.Fatalf("desc query must return newest first: %v", recs)
	}
	for _, rec := range recs {
		if rec["user_id"] != "user-1" {
			t.Fatalf("query leaked a record of another user: %v", rec)
		}
	}
}
