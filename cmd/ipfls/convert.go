package main

import (
	"encoding/json"
	"strings"
	"unicode/utf16"

	"github.com/jward/ipfls"
	"github.com/spf13/cast"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textMapper converts between protocol positions, which count UTF-16 code
// units, and engine positions, which count characters. A mapper without
// text passes columns through unchanged.
type textMapper struct {
	lines []string
}

func newTextMapper(text string, ok bool) textMapper {
	if !ok {
		return textMapper{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return textMapper{lines: strings.Split(text, "\n")}
}

func (m textMapper) line(n int) (string, bool) {
	if n < 0 || n >= len(m.lines) {
		return "", false
	}
	return m.lines[n], true
}

func (m textMapper) position(p protocol.Position) ipfls.Position {
	pos := ipfls.Position{Line: int(p.Line), Character: int(p.Character)}
	line, ok := m.line(pos.Line)
	if !ok {
		return pos
	}
	units, chars := 0, 0
	for _, r := range line {
		if units >= pos.Character {
			break
		}
		units += utf16.RuneLen(r)
		chars++
	}
	pos.Character = chars + max(pos.Character-units, 0)
	return pos
}

func (m textMapper) protocolPosition(p ipfls.Position) protocol.Position {
	out := protocol.Position{Line: protocol.UInteger(max(p.Line, 0)), Character: protocol.UInteger(max(p.Character, 0))}
	line, ok := m.line(p.Line)
	if !ok {
		return out
	}
	units, chars := 0, 0
	for _, r := range line {
		if chars >= p.Character {
			break
		}
		units += utf16.RuneLen(r)
		chars++
	}
	out.Character = protocol.UInteger(units + max(p.Character-chars, 0))
	return out
}

func (m textMapper) protocolRange(r ipfls.Range) protocol.Range {
	return protocol.Range{Start: m.protocolPosition(r.Start), End: m.protocolPosition(r.End)}
}

// applyChanges replays didChange content changes over text in order.
func applyChanges(text string, changes []any) string {
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				text = c.Text
				continue
			}
			start, end := c.Range.IndexesIn(text)
			text = text[:start] + c.Text + text[end:]
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		}
	}
	return text
}

// settingsMap extracts ipfls settings from an editor payload. Settings may
// be nested under an "ipfls" or "vscode-igorpro" section; the "files"
// section is read from the top level.
func settingsMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	top, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	for _, section := range []string{"ipfls", "vscode-igorpro"} {
		nested, err := cast.ToStringMapE(top[section])
		if err != nil || len(nested) == 0 {
			continue
		}
		if files, ok := top["files"]; ok {
			if _, set := nested["files"]; !set {
				nested["files"] = files
			}
		}
		return nested
	}
	return top
}

// completionData decodes the data round-tripped through the client.
func completionData(v any) (ipfls.CompletionData, bool) {
	var data ipfls.CompletionData
	raw, err := json.Marshal(v)
	if err != nil {
		return data, false
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Source == "" {
		return data, false
	}
	return data, true
}

func markdown(value string) *protocol.MarkupContent {
	return &protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: value}
}

func toProtocolCompletion(it ipfls.CompletionItem) protocol.CompletionItem {
	kind := protocol.CompletionItemKind(it.Kind)
	item := protocol.CompletionItem{
		Label: it.Label,
		Data:  it.Data,
	}
	if it.Kind != 0 {
		item.Kind = &kind
	}
	if detail := strings.TrimSpace(it.Detail + " " + it.Description); detail != "" {
		item.Detail = &detail
	}
	if it.Deprecated {
		item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
	}
	return item
}

func toProtocolSignatureHelp(help *ipfls.SignatureHelp) *protocol.SignatureHelp {
	activeSignature := protocol.UInteger(help.ActiveSignature)
	activeParameter := protocol.UInteger(help.ActiveParameter)
	out := &protocol.SignatureHelp{
		Signatures:      make([]protocol.SignatureInformation, 0, len(help.Signatures)),
		ActiveSignature: &activeSignature,
		ActiveParameter: &activeParameter,
	}
	for _, sig := range help.Signatures {
		info := protocol.SignatureInformation{Label: sig.Label}
		if sig.Documentation != "" {
			info.Documentation = markdown(sig.Documentation)
		}
		for _, p := range sig.Parameters {
			info.Parameters = append(info.Parameters, protocol.ParameterInformation{Label: p.Label})
		}
		out.Signatures = append(out.Signatures, info)
	}
	return out
}

// fromProtocolSignatureHelp recovers what the engine needs from the help
// the client is showing.
func fromProtocolSignatureHelp(help *protocol.SignatureHelp) *ipfls.SignatureHelp {
	if help == nil {
		return nil
	}
	out := &ipfls.SignatureHelp{}
	for _, sig := range help.Signatures {
		out.Signatures = append(out.Signatures, ipfls.SignatureInformation{Label: sig.Label})
	}
	if help.ActiveSignature != nil {
		out.ActiveSignature = int(*help.ActiveSignature)
	}
	if help.ActiveParameter != nil {
		out.ActiveParameter = int(*help.ActiveParameter)
	}
	return out
}

func toProtocolDocumentSymbols(m textMapper, symbols []ipfls.DocumentSymbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, protocol.DocumentSymbol{
			Name:           s.Name,
			Kind:           protocol.SymbolKind(s.Kind),
			Range:          m.protocolRange(s.Range),
			SelectionRange: m.protocolRange(s.SelectionRange),
			Children:       toProtocolDocumentSymbols(m, s.Children),
		})
	}
	return out
}

const diagnosticSource = "ipfls"

func toProtocolDiagnostics(m textMapper, diags []ipfls.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	source := diagnosticSource
	for _, d := range diags {
		severity := protocol.DiagnosticSeverity(d.Severity)
		out = append(out, protocol.Diagnostic{
			Range:    m.protocolRange(d.Range),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}
