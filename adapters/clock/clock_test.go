package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/metergate/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)

	if !fake.Now().Equal(start) {
		t.Errorf("Now = %v, want %v", fake.Now(), start)
	}

	fake.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !fake.Now().Equal(want) {
		t.Errorf("after Advance, Now = %v, want %v", fake.Now(), want)
	}

	moved := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake.Set(moved)
	if !fake.Now().Equal(moved) {
		t.Errorf("after Set, Now = %v, want %v", fake.Now(), moved)
	}
}
