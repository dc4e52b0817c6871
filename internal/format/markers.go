package format

import "fmt"

// superscripts is the fixed marker table for the first 15 citations.
// Messenger renders these glyphs inline without breaking line flow.
var superscripts = []string{
	"¹", "²", "³", "⁴", "⁵", "⁶", "⁷", "⁸", "⁹",
	"¹⁰", "¹¹", "¹²", "¹³", "¹⁴", "¹⁵",
}

// Marker returns the display token for the zero-based citation index.
// Indices past the superscript table fall back to a bracketed decimal.
func Marker(index int) string {
	if index >= 0 && index < len(superscripts) {
		return superscripts[index]
	}
	return fmt.Sprintf("[%d]", index+1)
}
