package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecipe_Valid(t *testing.T) {
	raw := []byte(`{
		"title": " Kimchi Jjigae ",
		"description": "Spicy stew",
		"portions": 4,
		"ingredients": ["2 cups kimchi", " ", "1 block tofu"],
		"instructions": ["Simmer the kimchi.", "Add tofu."],
		"substitutions": [
			{"original": "pork belly", "replacement": "shiitake", "reason": "vegetarian"},
			{"original": "", "replacement": "ignored", "reason": "x"}
		]
	}`)

	result, err := DecodeRecipe(raw)
	require.NoError(t, err)
	assert.Equal(t, "Kimchi Jjigae", result.Title)
	assert.Equal(t, 4, result.Portions)
	assert.Equal(t, []string{"2 cups kimchi", "1 block tofu"}, result.Ingredients)
	assert.Len(t, result.Instructions, 2)
	require.Len(t, result.Substitutions, 1)
	assert.Equal(t, "shiitake", result.Substitutions[0].Replacement)
}

func TestDecodeRecipe_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"not json":         `here is your recipe!`,
		"missing title":    `{"ingredients":["a"],"instructions":["b"]}`,
		"no ingredients":   `{"title":"x","ingredients":[],"instructions":["b"]}`,
		"no instructions":  `{"title":"x","ingredients":["a"],"instructions":["  "]}`,
		"wrong field type": `{"title":"x","ingredients":"a","instructions":["b"]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecipe([]byte(raw))
			require.Error(t, err)

			var extErr *ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, ExtractionMalformed, extErr.Kind)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestDecodeRecipe_NegativePortions(t *testing.T) {
	result, err := DecodeRecipe([]byte(`{"title":"x","portions":-2,"ingredients":["a"],"instructions":["b"]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Portions)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyExtractionError(t *testing.T) {
	assert.Nil(t, ClassifyExtractionError(nil))

	cases := []struct {
		name string
		err  error
		want ExtractionErrorKind
	}{
		{"deadline", fmt.Errorf("claude API error: %w", context.DeadlineExceeded), ExtractionTimeout},
		{"net timeout", timeoutErr{}, ExtractionTimeout},
		{"malformed", fmt.Errorf("%w: no tool_use block", ErrMalformedOutput), ExtractionMalformed},
		{"upstream", errors.New("claude API error: 401 unauthorized"), ExtractionUpstream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var extErr *ExtractionError
			require.True(t, errors.As(ClassifyExtractionError(tc.err), &extErr))
			assert.Equal(t, tc.want, extErr.Kind)
			assert.ErrorIs(t, extErr, tc.err)
		})
	}
}

func TestClassifyExtractionError_AlreadyClassified(t *testing.T) {
	orig := &ExtractionError{Kind: ExtractionMalformed, Err: ErrMalformedOutput}
	assert.Same(t, orig, ClassifyExtractionError(orig))
}

func TestDecodeIntent(t *testing.T) {
	intent, err := decodeIntent([]byte(`{"dish":"Kimchi Stew","search_query":"","on_topic":true}`))
	require.NoError(t, err)
	assert.Equal(t, "Kimchi Stew", intent.SearchQuery)
	assert.True(t, intent.OnTopic)

	intent, err = decodeIntent([]byte(`{"dish":"","search_query":"","on_topic":true}`))
	require.NoError(t, err)
	assert.False(t, intent.OnTopic)

	_, err = decodeIntent([]byte(`nope`))
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestDecodeSubstitution(t *testing.T) {
	result, err := decodeSubstitution([]byte(`{"ingredients":["tofu"],"instructions":["cook"],"substitutions":[{"original":"pork","replacement":"tofu","reason":"vegetarian"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"tofu"}, result.Ingredients)
	assert.Len(t, result.Substitutions, 1)

	_, err = decodeSubstitution([]byte(`{"ingredients":[]}`))
	assert.ErrorIs(t, err, ErrMalformedOutput)
}
