package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFoldName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"RECNUMBR":       "recnumbr",
		" RecNumbr ":     "recnumbr",
		"\uFEFFSTATE":  "state",
		"ＦＩＰＳＣＯＤＥ": "fipscode", // full-width, NFKC folds to ASCII
		"":               "",
	}
	for in, want := range cases {
		if got := FoldName(in); got != want {
			t.Fatalf("FoldName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestDefaultLayoutCompiles(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	c, err := l.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !c.IsKept("recnumbr") || !c.IsKept("fcmntpay") {
		t.Fatalf("identifiers/passthrough not kept")
	}
	if !c.IsExcluded("st") || !c.IsExcluded("amiakn") {
		t.Fatalf("explicit exclusions missing")
	}
	if !c.IsExcluded("dob") || !c.IsConsumed("ctk1yr") {
		t.Fatalf("derivation inputs must be treated as excluded")
	}
	if got := c.LabelFor("curplset"); got != "currentPlacementSetting" {
		t.Fatalf("LabelFor(curplset) = %q", got)
	}
	if got := c.LabelFor("unlisted"); got != "unlisted" {
		t.Fatalf("LabelFor(unlisted) = %q; want raw name", got)
	}
	want := time.Date(2001, 9, 30, 0, 0, 0, 0, time.UTC)
	if !c.Reference.Equal(want) {
		t.Fatalf("Reference = %v; want %v", c.Reference, want)
	}
	if c.Layout.SubjectColumn != "stfcid" || c.Layout.YearColumn != "repdatyr" {
		t.Fatalf("subject/year = %q/%q", c.Layout.SubjectColumn, c.Layout.YearColumn)
	}
	if len(c.Layout.DateLayouts) == 0 {
		t.Fatalf("default date layouts not applied")
	}
}

func TestCompileRename(t *testing.T) {
	t.Parallel()

	l := Layout{
		Name:        "y2002",
		Identifiers: []string{"RECNUMBR"},
		Rename:      map[string]string{"RecordNumber": "RECNUMBR"},
	}
	c, err := l.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := c.Canonical("RECORDNUMBER"); got != "recnumbr" {
		t.Fatalf("Canonical = %q; want recnumbr", got)
	}
	if got := c.Canonical("Sex"); got != "sex" {
		t.Fatalf("Canonical = %q; want sex", got)
	}
}

func TestValidateFindsProblems(t *testing.T) {
	t.Parallel()

	l := Layout{
		Identifiers: []string{"recnumbr", "sex"},
		Labels:      map[string]string{"sexcode": "sex"},
		Derive: []Derivation{
			{Name: "age", Kind: "bogus", From: "dob"},
			{Name: "ctkAge", Kind: DeriveYearDiff, From: "ctk1yr"},
			{Name: "ageRef", Kind: DeriveAgeYears, From: "dob"},
		},
		ReferenceDate: "",
	}
	errs := l.Validate()
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range []string{
		`output column "sex"`,
		`unknown kind "bogus"`,
		"year_diff requires to",
		"needs reference_date",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
	if _, err := l.Compile(); err == nil {
		t.Fatalf("Compile must fail for an invalid layout")
	}
}

func TestLoadLayoutFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layout.yaml")
	body := `name: tiny
identifiers: [RECNUMBR]
labels: {CURPLSET: currentPlacementSetting}
exclude: [ST]
reference_date: "2019-09-30"
derive:
  - {name: ageAtReferenceDate, kind: age_years, from: DOB}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	c, err := l.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff([]string{"ageAtReferenceDate"}, c.DerivedNames()); diff != "" {
		t.Fatalf("derived names (-want +got):\n%s", diff)
	}
	if c.Layout.Derive[0].From != "dob" {
		t.Fatalf("derivation input not folded: %q", c.Layout.Derive[0].From)
	}
}

func TestParseLayoutRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := ParseLayout([]byte("name: x\nidentifierz: [a]\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
