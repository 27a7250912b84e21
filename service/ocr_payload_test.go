package service

import (
	"encoding/json"
	"testing"

	"github.com/cmdf/pdfnote-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOCRPayload(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		result, err := NormalizeOCRPayload([]byte(`{"pages":[{"page_num":"2","text":"x"}]}`))
		require.NoError(t, err)
		require.Len(t, result.Pages, 1)
		assert.Equal(t, types.PageNum(2), result.Pages[0].PageNum)
	})

	t.Run("string wrapped object", func(t *testing.T) {
		result, err := NormalizeOCRPayload([]byte(`"{\"figures\":[{\"page_num\":1.0}]}"`))
		require.NoError(t, err)
		require.Len(t, result.Figures, 1)
		assert.Equal(t, types.PageNum(1), result.Figures[0].PageNum)
	})

	t.Run("missing keys", func(t *testing.T) {
		result, err := NormalizeOCRPayload([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, result.Pages)
		assert.Empty(t, result.Figures)
		assert.Empty(t, result.Matches)
	})

	for name, body := range map[string]string{
		"null":             `null`,
		"number":           `42`,
		"wrapped array":    `"[]"`,
		"fractional page":  `{"pages":[{"page_num":1.5}]}`,
		"pages not a list": `{"pages":{"page_num":1}}`,
		"truncated":        `{"pages":[`,
		"boolean page_num": `{"matches":[{"page_num":true}]}`,
		"huge page":        `{"pages":[{"page_num":1e30}]}`,
		"huge negative":    `{"pages":[{"page_num":-1e30}]}`,
		"page past int32":  `{"figures":[{"page_num":2147483648}]}`,
		"huge string page": `{"pages":[{"page_num":"99999999999"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeOCRPayload([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedUpstreamResponse)
		})
	}
}

func TestNormalizeFigureBox(t *testing.T) {
	stored, ok := normalizeFigureBox(json.RawMessage(`[1, 2.5, 3, 4]`))
	require.True(t, ok)
	assert.JSONEq(t, `{"min_x":1,"min_y":2.5,"max_x":3,"max_y":4}`, string(stored))

	stored, ok = normalizeFigureBox(json.RawMessage(`null`))
	assert.False(t, ok)
	assert.Nil(t, stored)

	stored, ok = normalizeFigureBox(nil)
	assert.False(t, ok)
	assert.Nil(t, stored)

	for _, raw := range []string{`["1", "2", "3", "4"]`, `[1, 2, 3]`, `{"x": 1}`, `"box"`} {
		stored, ok = normalizeFigureBox(json.RawMessage(raw))
		assert.False(t, ok, raw)
		assert.Equal(t, raw, string(stored))
	}
}

func TestBoxKey(t *testing.T) {
	numeric, ok := boxKey(json.RawMessage(`[0, 0, 10, 10]`))
	require.True(t, ok)
	same, ok := boxKey(json.RawMessage(`[0.0, 0, 10.0, 1e1]`))
	require.True(t, ok)
	assert.Equal(t, numeric, same)

	strs, ok := boxKey(json.RawMessage(`["0", "0", "10", "10"]`))
	require.True(t, ok)
	assert.NotEqual(t, numeric, strs)
	spaced, ok := boxKey(json.RawMessage(`[ "0","0" , "10","10" ]`))
	require.True(t, ok)
	assert.Equal(t, strs, spaced)

	for _, raw := range []string{`null`, ``, `[1, 2, 3]`, `{"x": 1}`, `"box"`} {
		_, ok := boxKey(json.RawMessage(raw))
		assert.False(t, ok, raw)
	}
}

func TestJoinText(t *testing.T) {
	cases := map[string]string{
		``:                  "",
		`null`:              "",
		`"plain"`:           "plain",
		`["a", "b"]`:        "a b",
		`[]`:                "",
		`["a", 1, true]`:    "a 1 true",
		`12345678901234567`: "12345678901234567",
		`false`:             "false",
		`{"k": "v"}`:        `{"k":"v"}`,
	}
	for raw, want := range cases {
		assert.Equal(t, want, joinText(json.RawMessage(raw)), raw)
	}
}

func TestAssociatedTextFallsBackToMatchedText(t *testing.T) {
	var m types.OCRMatch
	require.NoError(t, json.Unmarshal([]byte(`{"matched_text": "legacy"}`), &m))
	assert.Equal(t, "legacy", joinText(m.AssociatedText()))

	require.NoError(t, json.Unmarshal([]byte(`{"figure_text": "new", "matched_text": "legacy"}`), &m))
	assert.Equal(t, "new", joinText(m.AssociatedText()))
}
