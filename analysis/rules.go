package analysis

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/timzifer/srcmodel/config"
)

type rule struct {
	name    string
	kind    config.ValueKind
	program *vm.Program
}

// RuleSet holds compiled metric rules evaluated against every analyzed
// document.
type RuleSet struct {
	rules []rule
}

// NewRuleSet compiles the configured rule expressions. A rule without an
// explicit kind produces numbers.
func NewRuleSet(cfgs []config.RuleConfig) (*RuleSet, error) {
	set := &RuleSet{rules: make([]rule, 0, len(cfgs))}
	for _, cfg := range cfgs {
		kind := cfg.Kind
		if kind == "" {
			kind = config.ValueKindNumber
		}
		program, err := expr.Compile(cfg.Expression, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("rule %s: compile: %w", cfg.Name, err)
		}
		set.rules = append(set.rules, rule{name: cfg.Name, kind: kind, program: program})
	}
	return set, nil
}

// Evaluate runs every rule in the document environment and returns the
// typed results keyed by rule name.
func (s *RuleSet) Evaluate(doc *Document) (map[string]Value, error) {
	if s == nil || len(s.rules) == 0 {
		return nil, nil
	}
	env := doc.env()
	metrics := make(map[string]Value, len(s.rules))
	for _, r := range s.rules {
		out, err := vm.Run(r.program, env)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.name, err)
		}
		converted, err := convertValue(r.kind, out)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.name, err)
		}
		metrics[r.name] = Value{Kind: r.kind, Data: converted}
	}
	return metrics, nil
}

// Deriver builds the derivation function fed to the engine: analyze the
// snapshot, then decorate the document with rule metrics. Rule evaluation
// failures are recoverable computation errors; the engine keeps the prior
// result.
func Deriver(rules *RuleSet) func(source string) (*Document, error) {
	return func(source string) (*Document, error) {
		doc, err := Analyze(source)
		if err != nil {
			return nil, err
		}
		metrics, err := rules.Evaluate(doc)
		if err != nil {
			return nil, err
		}
		doc.Metrics = metrics
		return doc, nil
	}
}
