// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-viper/mapstructure/v2"

	"github.com/rehearse-dev/rehearse/builtins"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// ExecuteBuiltin runs a `uses: builtin:` step in-process.
//
// The step's with block is templated, weakly decoded onto the builtin's
// input struct, and the builtin's outputs come back like any step's.
func ExecuteBuiltin(ctx context.Context, step v0.Step, tc TemplateContext, dry bool) (map[string]any, error) {
	logger := log.FromContext(ctx)
	name := strings.TrimPrefix(step.Uses, "builtin:")

	builtin := builtins.Get(name)
	if builtin == nil {
		return nil, fmt.Errorf("%s not found", step.Uses)
	}

	var rendered map[string]any
	if step.With != nil {
		var err error
		rendered, err = TemplateWithMap(ctx, tc, step.With, dry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Uses, err)
		}
	}

	if dry {
		logger.Info("dry run", "builtin", name)
		printBuiltin(logger, rendered)
		return nil, nil
	}

	if rendered != nil {
		if err := decodeWith(&builtin, rendered); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Uses, err)
		}
	}

	logger.Debug(">", "builtin", name, "with", builtin)

	result, err := builtin.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step.Uses, err)
	}

	return result, nil
}

// decodeWith maps the rendered with block onto the builtin's fields,
// weakly typed so templated scalars land in typed fields
func decodeWith(builtin *builtins.Builtin, with map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           builtin,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(with)
}
