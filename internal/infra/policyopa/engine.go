// Package policyopa evaluates transfer compliance against a local rego
// bundle, for deployments that cannot rely on a remote approval server.
package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.neko.compliance.result"

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// TransferInput is the document handed to the policy for each movement.
type TransferInput struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type policyResult struct {
	Allow bool         `json:"allow"`
	Deny  []denyReason `json:"deny"`
}

type denyReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	if strings.TrimSpace(bundlePath) == "" {
		return nil, errors.New("bundle path is required")
	}
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	compiler := ast.NewCompiler().WithCapabilities(ast.CapabilitiesForThisVersion())
	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &Engine{
		query:      prepared,
		bundleHash: bundleHash,
	}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

// Check implements the compliance gate. Deny reasons from the policy are
// folded into the returned error message.
func (e *Engine) Check(ctx context.Context, from, to string, amount *big.Int) error {
	if e == nil {
		return errors.New("compliance engine is nil")
	}
	amountStr := "0"
	if amount != nil {
		amountStr = amount.String()
	}
	input := TransferInput{From: from, To: to, Amount: amountStr}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return errors.New("empty compliance result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return err
	}
	if result.Allow {
		return nil
	}
	if len(result.Deny) == 0 {
		return errors.New("transfer denied by policy")
	}
	reasons := make([]string, 0, len(result.Deny))
	for _, deny := range result.Deny {
		reasons = append(reasons, deny.Code+": "+deny.Message)
	}
	return fmt.Errorf("transfer denied by policy: %s", strings.Join(reasons, "; "))
}

func decodeResult(value any) (policyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return policyResult{}, err
	}
	var result policyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return policyResult{}, err
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	return result, nil
}
