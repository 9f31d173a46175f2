// Package normalize provides utilities for normalizing free-form QC values.
package normalize

import (
	"strings"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

// passValues and failValues are the accepted spellings of a pass-fail answer,
// compared after trimming and lowercasing.
//
//nolint:gochecknoglobals // Static lookup table for status normalization
var (
	passValues = map[string]struct{}{"y": {}, "yes": {}, "pass": {}, "p": {}}
	failValues = map[string]struct{}{"n": {}, "no": {}, "fail": {}, "f": {}}
)

// Status maps a raw pass-fail answer to "pass", "fail" or "".
// It never fails: anything unrecognized, including "", becomes "".
//
//	"Y", " yes ", "P" -> "pass"
//	"N", "fail", "f"  -> "fail"
//	"maybe", ""       -> ""
func Status(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := passValues[v]; ok {
		return domain.StatusPass
	}
	if _, ok := failValues[v]; ok {
		return domain.StatusFail
	}
	return ""
}

// Value returns raw as stored for a variable of the given type:
// normalized for pass-fail, verbatim otherwise.
func Value(variableType, raw string) string {
	if variableType == domain.VariableTypePassFail {
		return Status(raw)
	}
	return raw
}
