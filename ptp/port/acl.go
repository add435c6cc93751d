/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package port

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// aclVars are the fields an ACL expression is permitted to reference,
// mirroring the math expression allow-list in fbclock/daemon/math.go's
// isSupportedVar, generalized to the per-peer attributes a port needs to
// gate on rather than a clock-quality sample window.
var aclVars = map[string]bool{
	"domain":        true,
	"clockClass":    true,
	"stepsRemoved":  true,
	"sourceAddress": true,
	"unicast":       true,
}

// ACL compiles and evaluates a boolean expression against a peer's
// announce-derived attributes, letting operators express accept/reject
// rules (e.g. "stepsRemoved < 3 && clockClass < 128") without a
// recompile, the same way math.go lets operators tune clock-quality
// scoring expressions at config time.
type ACL struct {
	expr *govaluate.EvaluableExpression
}

// NewACL compiles expr, rejecting any variable reference outside
// aclVars.
func NewACL(expr string) (*ACL, error) {
	if expr == "" {
		return &ACL{}, nil
	}
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling ACL expression %q: %w", expr, err)
	}
	for _, v := range e.Vars() {
		if !aclVars[v] {
			return nil, fmt.Errorf("unsupported ACL variable %q", v)
		}
	}
	return &ACL{expr: e}, nil
}

// Allow evaluates the compiled expression against params. A nil/empty
// ACL always allows.
func (a *ACL) Allow(params map[string]any) (bool, error) {
	if a == nil || a.expr == nil {
		return true, nil
	}
	res, err := a.expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluating ACL: %w", err)
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, fmt.Errorf("ACL expression did not evaluate to a boolean: %v", res)
	}
	return ok, nil
}
