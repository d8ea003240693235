package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.lsp.dev/protocol"

	chels "github.com/bdshadow/che-ls-jdt"
)

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTreeText prints the symbol tree as an indented outline, one symbol
// per line with its kind and location.
func formatTreeText(w io.Writer, nodes []*chels.SymbolNode) {
	for _, node := range nodes {
		formatNodeText(w, node, 0)
	}
}

func formatNodeText(w io.Writer, node *chels.SymbolNode, depth int) {
	indent := strings.Repeat("  ", depth)
	loc := ""
	if node.Location != nil {
		loc = fmt.Sprintf("  [%d:%d]",
			node.Location.Range.Start.Line+1,
			node.Location.Range.Start.Character+1)
	}
	fmt.Fprintf(w, "%s%s (%s)%s\n", indent, node.Name, symbolKindName(node.Kind), loc)
	for _, child := range node.Children {
		formatNodeText(w, child, depth+1)
	}
}

// symbolKindName names the kinds the outliner emits.
func symbolKindName(kind protocol.SymbolKind) string {
	switch kind {
	case protocol.SymbolKindClass:
		return "class"
	case protocol.SymbolKindInterface:
		return "interface"
	case protocol.SymbolKindEnum:
		return "enum"
	case protocol.SymbolKindMethod:
		return "method"
	case protocol.SymbolKindConstructor:
		return "constructor"
	case protocol.SymbolKindField:
		return "field"
	case protocol.SymbolKindEnumMember:
		return "enum constant"
	default:
		return "symbol"
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
