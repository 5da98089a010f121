package impute

import (
	"errors"
	"fmt"
	"strings"
)

// Class is a semantic column class with its own fill assumption.
type Class string

const (
	// ClassMonetary: no payment record means no payment.
	ClassMonetary Class = "monetary"
	// ClassDuration: no length-of-stay means no prior episode.
	ClassDuration Class = "duration"
	// ClassCount: no count means exactly one placement or removal.
	ClassCount Class = "count"
	// ClassIndicator: an absent flag means "not indicated".
	ClassIndicator Class = "indicator"
	// ClassCategorical: a never-populated label, distinct from "Unknown".
	ClassCategorical Class = "categorical"
)

// DataNotGiven is the sentinel label for categorical cells that were never
// populated.
const DataNotGiven = "Data Not Given"

// ErrPolicy marks an invalid imputation policy.
var ErrPolicy = errors.New("impute: invalid policy")

// Rule fills the missing cells of Columns according to Class.
type Rule struct {
	Class   Class    `yaml:"class" json:"class"`
	Columns []string `yaml:"columns" json:"columns"`
	// Fill overrides the class default: a number for numeric classes, a
	// string for the categorical class.
	Fill any `yaml:"fill,omitempty" json:"fill,omitempty"`
}

// Policy is the full set of rules. Column sets must be disjoint.
type Policy struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// DefaultFill returns the fill value of a class.
func DefaultFill(c Class) (any, bool) {
	switch c {
	case ClassMonetary, ClassDuration, ClassIndicator:
		return 0.0, true
	case ClassCount:
		return 1.0, true
	case ClassCategorical:
		return DataNotGiven, true
	}
	return nil, false
}

func numeric(c Class) bool { return c != ClassCategorical }

// DefaultPolicy matches the column names produced by schema.DefaultLayout.
func DefaultPolicy() Policy {
	return Policy{Rules: []Rule{
		{Class: ClassMonetary, Columns: []string{"fcmntpay"}},
		{Class: ClassDuration, Columns: []string{"lifelos", "settinglos", "previouslos", "latremlos"}},
		{Class: ClassCount, Columns: []string{"totalrem", "numplep"}},
		{Class: ClassIndicator, Columns: []string{
			"mr", "vishear", "phydis", "emotdist", "othermed",
			"phyabuse", "sexabuse", "neglect", "aaparent", "daparent",
			"aachild", "dachild", "childis", "chbehprb", "prtsdied",
			"prtsjail", "nocope", "abandmnt", "relinqsh", "housing",
			"ivefc", "iveaa", "ivaafdc", "ivdchsup", "xixmedcd",
			"ssiother", "noa",
		}},
		{Class: ClassCategorical, Columns: []string{
			"state", "fipsCode", "sex", "raceEthnicity", "hispanicOrigin",
			"clinicalDisability", "everAdopted", "ageAtAdoption", "removalManner",
			"currentPlacementSetting", "placedOutOfState", "caseGoal",
			"caretakerFamilyStructure", "fosterFamilyStructure", "dischargeReason",
		}},
	}}
}

// compiledRule is a Rule with its fill resolved and names cleaned.
type compiledRule struct {
	class   Class
	numeric bool
	num     float64
	label   string
	columns []string
}

// compile validates p: known classes, fill types matching the class and no
// column listed twice.
func (p Policy) compile() ([]compiledRule, error) {
	var errs []error
	owner := map[string]Class{}
	out := make([]compiledRule, 0, len(p.Rules))
	for i, r := range p.Rules {
		def, ok := DefaultFill(r.Class)
		if !ok {
			errs = append(errs, fmt.Errorf("rules[%d]: unknown class %q", i, r.Class))
			continue
		}
		fill := def
		if r.Fill != nil {
			fill = r.Fill
		}
		cr := compiledRule{class: r.Class, numeric: numeric(r.Class)}
		if cr.numeric {
			f, ok := toNumber(fill)
			if !ok {
				errs = append(errs, fmt.Errorf("rules[%d]: %s fill must be a number, got %v", i, r.Class, fill))
				continue
			}
			cr.num = f
		} else {
			s, ok := fill.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Errorf("rules[%d]: %s fill must be a non-empty string, got %v", i, r.Class, fill))
				continue
			}
			cr.label = s
		}
		for _, c := range r.Columns {
			// Names match normalized output columns exactly.
			name := strings.TrimSpace(c)
			if name == "" {
				continue
			}
			if prev, dup := owner[name]; dup {
				errs = append(errs, fmt.Errorf("rules[%d]: column %q already in class %s", i, name, prev))
				continue
			}
			owner[name] = r.Class
			cr.columns = append(cr.columns, name)
		}
		out = append(out, cr)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrPolicy, errors.Join(errs...))
	}
	return out, nil
}

// Validate reports every problem in p.
func (p Policy) Validate() error {
	_, err := p.compile()
	return err
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
