package engine

import "testing"

func TestParent(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"a/b/c", "a/b/"},
		{"a/b/", "a/"},
		{"a", ""},
		{"a/", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parent(tc.key); got != tc.want {
			t.Errorf("parent(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestDepth(t *testing.T) {
	cases := []struct {
		key  string
		want int
	}{
		{"root.txt", 0},
		{"dir1/file1.txt", 1},
		{"dir1/subdir/file3.txt", 2},
		{"dir1/", 1},
	}
	for _, tc := range cases {
		if got := depth(tc.key); got != tc.want {
			t.Errorf("depth(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestPrefixUpperBound(t *testing.T) {
	upper, ok := prefixUpperBound("test_prefix%weird/")
	if !ok {
		t.Fatal("expected ok=true for non-empty prefix")
	}
	if upper <= "test_prefix%weird/file1.txt" {
		t.Errorf("upper bound %q should exceed any key under the prefix", upper)
	}
	if upper <= "test_prefix%weird/" {
		t.Errorf("upper bound %q must exceed the prefix itself", upper)
	}

	if _, ok := prefixUpperBound(""); ok {
		t.Error("expected ok=false for an empty prefix")
	}
}
