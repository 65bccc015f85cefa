package dsl

import (
	"fmt"
	"strings"
)

// Step is one entry in a Rule's ordered program. Exactly one of Return,
// Then (with optional If/Else) drives control flow for the step:
//
//   - Return != ""  — evaluate the expr and return immediately (terminal).
//   - If != ""      — evaluate If; on true run Then and skip the remaining
//     arms of this if/elif chain; on false run Else (if set), otherwise fall
//     through to the next step (elif-chain semantics).
//   - If == ""      — unconditional Then, equivalent to a bare "else" arm.
//
// A chain ends with its unconditional Then or with a step that has an Else;
// the steps after it run as usual, so a later Return can read locals bound
// by an earlier branch.
type Step struct {
	If     string `json:"if,omitempty" yaml:"if,omitempty"`
	Then   string `json:"then,omitempty" yaml:"then,omitempty"`
	Else   string `json:"else,omitempty" yaml:"else,omitempty"`
	Return string `json:"return,omitempty" yaml:"return,omitempty"`
}

// Rule is a small ordered if/then/else/return program used for setState
// transitions and dynamic-edge routing. Its Run result is whatever value
// ends up bound to the implicit "output" local, or the argument of a
// Return step. It marshals as a bare JSON/YAML array of steps, matching
// the workflow surface's `"rule": [...]` shape.
type Rule []Step

// Run executes the rule's steps in order against ctx, returning the final
// output value. Branches may bind local variables with `name = expr`;
// locals persist across steps and shadow identically named context keys
// for the remainder of the run.
func (r Rule) Run(ctx map[string]any) (any, error) {
	locals := map[string]any{}
	// chainDone is set once an arm of an if/elif chain has been taken; the
	// chain's remaining arms are skipped up to and including the arm that
	// closes it (an unconditional Then, or a step with an Else).
	chainDone := false

	for i, step := range r {
		if step.Return != "" {
			return evalWithLocals(step.Return, ctx, locals)
		}
		if chainDone {
			if step.If == "" || step.Else != "" {
				chainDone = false
			}
			continue
		}

		cond := true
		if step.If != "" {
			v, err := evalWithLocals(step.If, ctx, locals)
			if err != nil {
				return nil, fmt.Errorf("rule step %d condition: %w", i, err)
			}
			cond = toBool(v)
		}

		if cond {
			if step.Then != "" {
				if err := execBranch(step.Then, ctx, locals); err != nil {
					return nil, fmt.Errorf("rule step %d then: %w", i, err)
				}
			}
			chainDone = step.If != "" && step.Else == ""
			continue
		}
		if step.Else != "" {
			if err := execBranch(step.Else, ctx, locals); err != nil {
				return nil, fmt.Errorf("rule step %d else: %w", i, err)
			}
			continue
		}
		// cond is false and there is no Else: fall through to the next step.
	}

	return locals["output"], nil
}

// execBranch evaluates one branch string, either as a `name = expr`
// assignment into locals, or as a plain expression stored into the
// implicit "output" local.
func execBranch(branch string, ctx map[string]any, locals map[string]any) error {
	name, expr, isAssign := splitAssignment(branch)

	val, err := evalWithLocals(expr, ctx, locals)
	if err != nil {
		return err
	}
	if isAssign {
		locals[name] = val
	} else {
		locals["output"] = val
	}
	return nil
}

// evalWithLocals evaluates expr against a context formed by overlaying
// locals on top of ctx, so local bindings shadow same-named context keys.
func evalWithLocals(expr string, ctx map[string]any, locals map[string]any) (any, error) {
	return evalString(expr, mergeLocals(ctx, locals))
}

func mergeLocals(ctx map[string]any, locals map[string]any) map[string]any {
	if len(locals) == 0 {
		return ctx
	}
	merged := make(map[string]any, len(ctx)+len(locals))
	for k, v := range ctx {
		merged[k] = v
	}
	for k, v := range locals {
		merged[k] = v
	}
	return merged
}

// splitAssignment detects a top-level `name = expr` assignment: a single
// leading identifier, then an unescaped '=' that is not part of a
// multi-character operator (==, !=, <=, >=). Returns ok=false if the
// branch is not shaped like an assignment, in which case the whole branch
// should be evaluated as a plain expression.
func splitAssignment(branch string) (name string, expr string, ok bool) {
	trimmed := strings.TrimSpace(branch)
	eq := findTopLevelEquals(trimmed)
	if eq == -1 {
		return "", trimmed, false
	}

	lhs := strings.TrimSpace(trimmed[:eq])
	rhs := strings.TrimSpace(trimmed[eq+1:])
	if !isSimpleIdent(lhs) || rhs == "" {
		return "", trimmed, false
	}
	return lhs, rhs, true
}

// findTopLevelEquals returns the index of a lone '=' not part of
// ==, !=, <=, >=, or -1 if none is found.
func findTopLevelEquals(s string) int {
	runes := []rune(s)
	for i, ch := range runes {
		if ch != '=' {
			continue
		}
		prevIsCompare := i > 0 && (runes[i-1] == '=' || runes[i-1] == '!' || runes[i-1] == '<' || runes[i-1] == '>')
		nextIsEquals := i+1 < len(runes) && runes[i+1] == '='
		if prevIsCompare || nextIsEquals {
			continue
		}
		return i
	}
	return -1
}

func isSimpleIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, ch := range s {
		if i == 0 && !isIdentStart(ch) {
			return false
		}
		if i > 0 && !isIdentPart(ch) {
			return false
		}
	}
	return true
}
