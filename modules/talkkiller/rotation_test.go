package talkkiller

import "testing"

func TestNextFallback(t *testing.T) {
	abc := []string{"a", "b", "c"}

	cases := []struct {
		name    string
		list    []string
		current string
		want    string
	}{
		{"advances", abc, "b", "c"},
		{"wraps", abc, "c", "a"},
		{"unknown current starts at head", abc, "z", "a"},
		{"empty list", nil, "a", ""},
		{"single entry rotates to itself", []string{"a"}, "a", "a"},
		{"single entry unknown current", []string{"a"}, "z", "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextFallback(tc.list, tc.current); got != tc.want {
				t.Errorf("NextFallback(%v, %q) = %q, want %q", tc.list, tc.current, got, tc.want)
			}
		})
	}
}
