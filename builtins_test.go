// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehearse-dev/rehearse/schema"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

func TestExecuteBuiltin(t *testing.T) {
	ctx := log.WithContext(t.Context(), log.New(io.Discard))

	t.Run("echo", func(t *testing.T) {
		step := v0.Step{
			Uses: "builtin:echo",
			With: schema.With{"text": "hello"},
		}

		out, err := ExecuteBuiltin(ctx, step, TemplateContext{}, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"stdout": "hello"}, out)
	})

	t.Run("with map is templated before decoding", func(t *testing.T) {
		step := v0.Step{
			Uses: "builtin:echo",
			With: schema.With{"text": `hello ${{ input "name" }}`},
		}
		tc := TemplateContext{Inputs: schema.With{"name": "world"}}

		out, err := ExecuteBuiltin(ctx, step, tc, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"stdout": "hello world"}, out)
	})

	t.Run("weakly typed with values", func(t *testing.T) {
		step := v0.Step{
			Uses: "builtin:echo",
			With: schema.With{"text": 42},
		}

		out, err := ExecuteBuiltin(ctx, step, TemplateContext{}, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"stdout": "42"}, out)
	})

	t.Run("not found", func(t *testing.T) {
		step := v0.Step{Uses: "builtin:missing"}

		_, err := ExecuteBuiltin(ctx, step, TemplateContext{}, false)
		require.EqualError(t, err, "builtin:missing not found")
	})

	t.Run("dry run decodes nothing", func(t *testing.T) {
		step := v0.Step{
			Uses: "builtin:echo",
			With: schema.With{"text": "hello"},
		}

		out, err := ExecuteBuiltin(ctx, step, TemplateContext{}, true)
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}
