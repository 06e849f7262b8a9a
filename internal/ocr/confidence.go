package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr   = regexp.MustCompile(`r\$|\bbrl\b|\breais\b`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(\.\d{3})*,\d{2}\b|\b\d+[.,]\d{2}\b`)
	reCNPJ   = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
)

// naive heuristic confidence for recognized invoice text
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	if strings.TrimSpace(txtL) == "" {
		return 0
	}
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reCNPJ.MatchString(txtL) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
