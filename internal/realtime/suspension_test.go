package realtime

import "testing"

func TestSuspensionCache(t *testing.T) {
	cache := NewSuspensionCache()

	if _, known := cache.Lookup("user-a"); known {
		t.Fatal("unknown user must not be known")
	}

	cache.Set("user-a", true)
	suspended, known := cache.Lookup("user-a")
	if !known || !suspended {
		t.Fatalf("expected known suspended, got known=%v suspended=%v", known, suspended)
	}

	cache.Set("user-a", false)
	suspended, known = cache.Lookup("user-a")
	if !known || suspended {
		t.Fatalf("expected known unsuspended, got known=%v suspended=%v", known, suspended)
	}

	cache.Forget("user-a")
	if _, known := cache.Lookup("user-a"); known {
		t.Fatal("forgotten user must not be known")
	}
}
