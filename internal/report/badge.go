package report

import (
	"encoding/json"
	"fmt"
	"html"

	"secscan/internal/model"
)

type BadgeStyle string

const (
	BadgeFlat       BadgeStyle = "flat"
	BadgeFlatSquare BadgeStyle = "flat-square"
)

func ParseBadgeStyle(s string) BadgeStyle {
	if s == string(BadgeFlatSquare) {
		return BadgeFlatSquare
	}
	return BadgeFlat
}

var badgeHex = map[string]string{
	"brightgreen": "#4c1",
	"green":       "#97ca00",
	"yellowgreen": "#a4a61d",
	"yellow":      "#dfb317",
	"orange":      "#fe7d37",
	"red":         "#e05d44",
}

type shieldsEndpoint struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
}

// badgeMessage is the right-hand side of a badge, e.g. "B 82/100".
func badgeMessage(res model.ScanResult) (string, string) {
	grade, color := Grade(res)
	msg := fmt.Sprintf("%s %d/100", grade, res.SecurityScore)
	if res.CompletionStatus == model.StatusFailed {
		msg += " (incomplete)"
	}
	return msg, color
}

// ShieldsJSON renders a shields.io endpoint document for res.
func ShieldsJSON(label string, res model.ScanResult) ([]byte, error) {
	msg, color := badgeMessage(res)
	b, err := json.MarshalIndent(shieldsEndpoint{SchemaVersion: 1, Label: label, Message: msg, Color: color}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal badge: %w", err)
	}
	return b, nil
}

// BadgeSVG renders a self-contained SVG badge for res.
func BadgeSVG(label string, res model.ScanResult, style BadgeStyle) string {
	msg, color := badgeMessage(res)
	hex, ok := badgeHex[color]
	if !ok {
		hex = "#9f9f9f"
	}

	labelWidth := float64(len(label))*6.5 + 10
	msgWidth := float64(len(msg))*7 + 10
	total := labelWidth + msgWidth
	rx := 3
	if style == BadgeFlatSquare {
		rx = 0
	}
	label, msg = html.EscapeString(label), html.EscapeString(msg)

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="20" role="img" aria-label="%s: %s">
  <linearGradient id="s" x2="0" y2="100%%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <clipPath id="r">
    <rect width="%.0f" height="20" rx="%d" fill="#fff"/>
  </clipPath>
  <g clip-path="url(#r)">
    <rect width="%.0f" height="20" fill="#555"/>
    <rect x="%.0f" width="%.0f" height="20" fill="%s"/>
    <rect width="%.0f" height="20" fill="url(#s)"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="11">
    <text x="%.1f" y="14">%s</text>
    <text x="%.1f" y="14">%s</text>
  </g>
</svg>
`,
		total, label, msg,
		total, rx,
		labelWidth,
		labelWidth, msgWidth, hex,
		total,
		labelWidth/2, label,
		labelWidth+msgWidth/2, msg,
	)
}
