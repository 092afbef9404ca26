package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/ipfls"
)

func TestTextMapper_UTF16(t *testing.T) {
	t.Parallel()
	// "𝑥" is one character and two UTF-16 code units.
	m := newTextMapper("Variable 𝑥 = sin(1)\r\nEnd", true)

	tests := []struct {
		name     string
		protocol protocol.Position
		engine   ipfls.Position
	}{
		{"line start", protocol.Position{Line: 0, Character: 0}, ipfls.Position{Line: 0, Character: 0}},
		{"before surrogate pair", protocol.Position{Line: 0, Character: 9}, ipfls.Position{Line: 0, Character: 9}},
		{"after surrogate pair", protocol.Position{Line: 0, Character: 11}, ipfls.Position{Line: 0, Character: 10}},
		{"inside call", protocol.Position{Line: 0, Character: 16}, ipfls.Position{Line: 0, Character: 15}},
		{"second line", protocol.Position{Line: 1, Character: 2}, ipfls.Position{Line: 1, Character: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.engine, m.position(tt.protocol))
			assert.Equal(t, tt.protocol, m.protocolPosition(tt.engine))
		})
	}
}

func TestTextMapper_PastEnd(t *testing.T) {
	t.Parallel()
	m := newTextMapper("ab", true)
	assert.Equal(t, ipfls.Position{Line: 0, Character: 5}, m.position(protocol.Position{Line: 0, Character: 5}))
	assert.Equal(t, protocol.Position{Line: 0, Character: 5}, m.protocolPosition(ipfls.Position{Line: 0, Character: 5}))
	assert.Equal(t, ipfls.Position{Line: 3, Character: 1}, m.position(protocol.Position{Line: 3, Character: 1}))
}

func TestTextMapper_WithoutText(t *testing.T) {
	t.Parallel()
	m := newTextMapper("", false)
	assert.Equal(t, ipfls.Position{Line: 2, Character: 7}, m.position(protocol.Position{Line: 2, Character: 7}))
	r := m.protocolRange(ipfls.Range{Start: ipfls.Position{Line: 1, Character: 2}, End: ipfls.Position{Line: 1, Character: 4}})
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 2},
		End:   protocol.Position{Line: 1, Character: 4},
	}, r)
}

func TestApplyChanges(t *testing.T) {
	t.Parallel()
	text := "Function F()\n\treturn 1\nEnd\n"

	got := applyChanges(text, []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 1, Character: 8},
				End:   protocol.Position{Line: 1, Character: 9},
			},
			Text: "42",
		},
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 9},
				End:   protocol.Position{Line: 0, Character: 10},
			},
			Text: "G",
		},
	})
	assert.Equal(t, "Function G()\n\treturn 42\nEnd\n", got)

	got = applyChanges(text, []any{protocol.TextDocumentContentChangeEventWhole{Text: "replaced"}})
	assert.Equal(t, "replaced", got)
}

func TestSettingsMap(t *testing.T) {
	t.Parallel()

	assert.Nil(t, settingsMap(nil))
	assert.Nil(t, settingsMap("not a map"))

	flat := map[string]any{"igorVersion": "8.04"}
	assert.Equal(t, flat, settingsMap(flat))

	nested := settingsMap(map[string]any{
		"vscode-igorpro": map[string]any{"igorVersion": "9.00"},
		"files":          map[string]any{"associations": map[string]any{"*.proc": "igorpro"}},
	})
	assert.Equal(t, "9.00", nested["igorVersion"])
	assert.Contains(t, nested, "files")
}

func TestCompletionData(t *testing.T) {
	t.Parallel()

	data, ok := completionData(map[string]any{
		"source":   "file:///w/a.ipf",
		"document": "file:///w/b.ipf",
		"position": map[string]any{"line": 3, "character": 4},
	})
	require.True(t, ok)
	assert.Equal(t, ipfls.CompletionData{
		Source:   "file:///w/a.ipf",
		Document: "file:///w/b.ipf",
		Position: ipfls.Position{Line: 3, Character: 4},
	}, data)

	_, ok = completionData(nil)
	assert.False(t, ok)
	_, ok = completionData("junk")
	assert.False(t, ok)
}

func TestToProtocolCompletion(t *testing.T) {
	t.Parallel()

	item := toProtocolCompletion(ipfls.CompletionItem{
		Label:       "sin",
		Detail:      "(angle)",
		Description: "built-in",
		Kind:        3,
		Deprecated:  true,
	})
	require.NotNil(t, item.Kind)
	assert.Equal(t, protocol.CompletionItemKindFunction, *item.Kind)
	require.NotNil(t, item.Detail)
	assert.Equal(t, "(angle) built-in", *item.Detail)
	assert.Equal(t, []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}, item.Tags)

	bare := toProtocolCompletion(ipfls.CompletionItem{Label: "x"})
	assert.Nil(t, bare.Kind)
	assert.Nil(t, bare.Detail)
}

func TestSignatureHelpRoundTrip(t *testing.T) {
	t.Parallel()

	help := &ipfls.SignatureHelp{
		Signatures: []ipfls.SignatureInformation{
			{Label: "abs(num)", Documentation: "Real input.", Parameters: []ipfls.ParameterInformation{{Label: "num"}}},
			{Label: "abs(z)"},
		},
		ActiveSignature: 1,
		ActiveParameter: 0,
	}
	out := toProtocolSignatureHelp(help)
	require.Len(t, out.Signatures, 2)
	assert.Equal(t, "Real input.", out.Signatures[0].Documentation.(*protocol.MarkupContent).Value)
	assert.Nil(t, out.Signatures[1].Documentation)
	assert.Equal(t, []protocol.ParameterInformation{{Label: "num"}}, out.Signatures[0].Parameters)

	back := fromProtocolSignatureHelp(out)
	require.NotNil(t, back)
	assert.Equal(t, 1, back.ActiveSignature)
	assert.Equal(t, "abs(num)", back.Signatures[0].Label)
	assert.Nil(t, fromProtocolSignatureHelp(nil))
}
