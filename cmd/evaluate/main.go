// Command evaluate runs a single evaluation over a JSON snapshot and prints
// the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/raterudder/devicerudder/pkg/controller"
	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/types"
	"gopkg.in/yaml.v3"
)

func main() {
	inputPath := lflag.RequiredString("input", "Path to an evaluation input JSON file")
	policyPath := lflag.String("policy", "", "Path to a policy JSON or YAML file, the default policy is used when empty")
	lflag.Configure()

	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx := context.Background()
	if err := run(ctx, *inputPath, *policyPath, os.Stdout); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "evaluation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// readPolicy reads a policy from JSON, or YAML when the file has a .yaml or
// .yml extension. Fields missing from the file keep their default.
func readPolicy(path string) (types.Policy, error) {
	policy := types.DefaultPolicy()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return policy, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &policy); err != nil {
			return policy, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := readJSON(path, &policy); err != nil {
			return policy, err
		}
	}
	return policy, nil
}

func run(ctx context.Context, inputPath, policyPath string, w io.Writer) error {
	var input types.EvaluationInput
	if err := readJSON(inputPath, &input); err != nil {
		return err
	}

	policy := types.DefaultPolicy()
	if policyPath != "" {
		var err error
		if policy, err = readPolicy(policyPath); err != nil {
			return err
		}
	}

	c, err := controller.NewController(policy)
	if err != nil {
		return err
	}
	result := c.Evaluate(ctx, input)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
