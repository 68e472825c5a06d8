// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	triples := [][3]int{
		{0, 0, 0},
		{1, 0, 0},
		{1, 2, 3},
		{10, 20, 30},
		{0, 9, 100},
	}

	for _, tr := range triples {
		want := Version{Major: tr[0], Minor: tr[1], Patch: tr[2]}
		got, err := Parse(want.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", want.String(), err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", want.String(), got, want)
		}
	}
}

func TestParseNormalization(t *testing.T) {
	cases := []struct {
		input string
		want  Version
	}{
		{"1.2.3", Version{1, 2, 3}},
		{"v1.2.3", Version{1, 2, 3}},
		{"V1.2.3", Version{1, 2, 3}},
		{"  v1.2.3\n", Version{1, 2, 3}},
		{"\t0.1.0 ", Version{0, 1, 0}},
	}

	for _, tc := range cases {
		got, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"1",
		"1.2",
		"1.2.3.4",
		"1.2.x",
		"a.b.c",
		"1..3",
		"1.2.-3",
		"1.2.+3",
		"1.2.3-beta",
		"vv1.2.3",
		"1 .2.3",
	}

	for _, input := range inputs {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
			continue
		}
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidVersion", input, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error is not a *ParseError: %v", input, err)
		}
	}
}

func TestCompareIsStrictTotalOrder(t *testing.T) {
	ordered := []Version{
		{0, 0, 0},
		{0, 0, 1},
		{0, 1, 0},
		{0, 1, 1},
		{1, 0, 0},
		{1, 0, 10},
		{1, 2, 3},
		{2, 0, 0},
	}

	for i, a := range ordered {
		for j, b := range ordered {
			got := a.Compare(b)
			var want int
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if got != want {
				t.Errorf("Compare(%v, %v) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestTrimVersion(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"1.2.3\n", "1.2.3"},
		{"  abc123  ", "abc123"},
		{"v1.2.3\n", "1.2.3"},
		{"  v2.0.0  ", "2.0.0"},
		{"V1.0.0", "1.0.0"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := TrimVersion(tc.input); got != tc.want {
			t.Errorf("TrimVersion(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestNeedsUpdateStringMode(t *testing.T) {
	cases := []struct {
		local, remote string
		want          bool
	}{
		{"1.0.0", "1.0.0", false},
		{"abc123", "abc124", true},
		{"2.0.0", "1.0.0", true}, // direction is irrelevant in string mode
		{"", "", false},
	}

	for _, tc := range cases {
		got, err := NeedsUpdate(CompareString, tc.local, tc.remote)
		if err != nil {
			t.Fatalf("NeedsUpdate(string, %q, %q): %v", tc.local, tc.remote, err)
		}
		if got != tc.want {
			t.Errorf("NeedsUpdate(string, %q, %q) = %v, want %v", tc.local, tc.remote, got, tc.want)
		}
	}
}

func TestNeedsUpdateSemverMode(t *testing.T) {
	cases := []struct {
		local, remote string
		want          bool
	}{
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "1.1.0", true},
		{"1.2.3", "1.2.2", false}, // locally newer is up to date
		{"2.0.0", "1.9.9", false},
		{"0.9.9", "1.0.0", true},
	}

	for _, tc := range cases {
		got, err := NeedsUpdate(CompareSemver, tc.local, tc.remote)
		if err != nil {
			t.Fatalf("NeedsUpdate(semver, %q, %q): %v", tc.local, tc.remote, err)
		}
		if got != tc.want {
			t.Errorf("NeedsUpdate(semver, %q, %q) = %v, want %v", tc.local, tc.remote, got, tc.want)
		}
	}
}

func TestNeedsUpdateSemverParseFailure(t *testing.T) {
	for _, pair := range [][2]string{
		{"not-a-version", "1.0.0"},
		{"1.0.0", "nope"},
	} {
		_, err := NeedsUpdate(CompareSemver, pair[0], pair[1])
		if err == nil {
			t.Fatalf("NeedsUpdate(semver, %q, %q) succeeded, want error", pair[0], pair[1])
		}
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("error = %v, want ErrInvalidVersion", err)
		}
	}
}

func TestCompareModeIsValid(t *testing.T) {
	for _, mode := range []CompareMode{CompareString, CompareSemver} {
		if ok, errs := mode.IsValid(); !ok {
			t.Errorf("%q.IsValid() = false, errs %v", mode, errs)
		}
	}

	bad := CompareMode("fuzzy")
	ok, errs := bad.IsValid()
	if ok {
		t.Fatal("invalid mode reported as valid")
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidCompareMode) {
		t.Errorf("errs = %v, want one InvalidCompareModeError", errs)
	}
}

func ExampleVersion_Compare() {
	a, _ := Parse("v1.2.3")
	b, _ := Parse("1.10.0")
	fmt.Println(a.Compare(b))
	// Output: -1
}
