package builtin

import (
	"fmt"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/transformer"
)

// Kinds lists the transform kinds Build understands.
var Kinds = []string{"trim", "coerce", "dedup", "require"}

// Build returns the transform configured by t.
func Build(t config.Transform) (transformer.Transformer, error) {
	var tr transformer.Transformer
	switch t.Kind {
	case "trim":
		tr = Trim{}
	case "coerce":
		tr = Coerce{Types: t.Options.StringMap("types"), Layout: t.Options.String("layout", "")}
	case "dedup":
		tr = DeDup{
			Keys:         t.Options.StringSlice("keys"),
			Policy:       t.Options.String("policy", "keep-last"),
			PreferFields: t.Options.StringSlice("prefer_fields"),
		}
	case "require":
		tr = Require{Fields: t.Options.StringSlice("fields")}
	default:
		return nil, fmt.Errorf("unknown transform kind %q", t.Kind)
	}
	return transformer.Named{Name: t.Kind, Transformer: tr}, nil
}

// BuildChain builds every configured transform in order.
func BuildChain(ts []config.Transform) (transformer.Chain, error) {
	c := make(transformer.Chain, 0, len(ts))
	for i, t := range ts {
		tr, err := Build(t)
		if err != nil {
			return nil, fmt.Errorf("transform[%d]: %w", i, err)
		}
		c = append(c, tr)
	}
	return c, nil
}
