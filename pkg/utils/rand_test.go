package utils

import (
	"sync"
	"testing"
)

func TestNewRandSource(t *testing.T) {
	rng := NewRandSource(12345)
	if rng == nil {
		t.Fatal("NewRandSource returned nil")
	}

	// Zero seed should pick a time based seed
	rng2 := NewRandSource(0)
	if rng2 == nil {
		t.Fatal("NewRandSource(0) returned nil")
	}
}

func TestRandSourceFloat64(t *testing.T) {
	rng := NewRandSource(12345)
	for i := 0; i < 100; i++ {
		val := rng.Float64()
		if val < 0.0 || val >= 1.0 {
			t.Errorf("Float64() returned %f, expected [0.0, 1.0)", val)
		}
	}
}

func TestRandSourceIntn(t *testing.T) {
	rng := NewRandSource(12345)
	for i := 0; i < 100; i++ {
		val := rng.Intn(10)
		if val < 0 || val >= 10 {
			t.Errorf("Intn(10) returned %d, expected [0, 10)", val)
		}
	}
}

func TestRandSourcePerm(t *testing.T) {
	rng := NewRandSource(7)
	perm := rng.Perm(9)
	seen := make(map[int]bool)
	for _, v := range perm {
		if v < 0 || v >= 9 || seen[v] {
			t.Fatalf("Perm(9) is not a permutation: %v", perm)
		}
		seen[v] = true
	}
}

func TestRandSourceUniformFloat64(t *testing.T) {
	rng := NewRandSource(12345)
	for i := 0; i < 100; i++ {
		val := rng.UniformFloat64(20, 40)
		if val < 20 || val >= 40 {
			t.Errorf("UniformFloat64(20, 40) returned %f", val)
		}
	}
}

func TestRandSourceUnitVector(t *testing.T) {
	rng := NewRandSource(3)
	v := rng.UnitVector(3)
	if len(v) != 3 {
		t.Fatalf("expected 3 coordinates, got %d", len(v))
	}
	for _, x := range v {
		if x < 0 || x >= 1 {
			t.Errorf("coordinate %f outside the unit interval", x)
		}
	}
}

func TestDeterministicBehavior(t *testing.T) {
	rng1 := NewRandSource(42)
	rng2 := NewRandSource(42)

	for i := 0; i < 10; i++ {
		if rng1.Float64() != rng2.Float64() {
			t.Fatal("RandSource with the same seed should produce the same sequence")
		}
	}
}

func TestGlobalRandFunctions(t *testing.T) {
	SetSeed(99)
	if v := Float64(); v < 0 || v >= 1 {
		t.Errorf("Float64() returned %f", v)
	}
	if v := Intn(5); v < 0 || v >= 5 {
		t.Errorf("Intn(5) returned %d", v)
	}
}

func TestConcurrentAccess(t *testing.T) {
	rng := NewRandSource(12345)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = rng.Float64()
				_ = rng.UnitVector(3)
			}
		}()
	}

	wg.Wait()
}
