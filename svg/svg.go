// Package svg wraps the monospaced ascii rendering in an SVG document so a
// preview surface can display it without a terminal. Layout is one <text>
// element per line on a fixed character grid.
package svg

import (
	"fmt"
	"strings"

	"github.com/opentab/otab/ascii"
	"github.com/opentab/otab/model"
)

const (
	fontSize   = 14
	lineHeight = 18
	charWidth  = 8
	padding    = 12
)

// Render encodes the document as ascii tab and wraps it in an SVG.
func Render(doc *model.Document) string {
	text := ascii.Encode(doc)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	maxLen := 0
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen*charWidth + 2*padding
	height := len(lines)*lineHeight + 2*padding

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&b, `  <rect width="%d" height="%d" fill="white"/>`+"\n", width, height)
	for i, line := range lines {
		y := padding + (i+1)*lineHeight - (lineHeight - fontSize)
		fmt.Fprintf(&b, `  <text x="%d" y="%d" font-family="monospace" font-size="%d" xml:space="preserve">%s</text>`+"\n",
			padding, y, fontSize, escape(line))
	}
	b.WriteString("</svg>\n")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
