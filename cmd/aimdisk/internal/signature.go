package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var dimensionPattern = regexp.MustCompile(`-(\d+)$`)

// ParseDimension derives the vector dimension from a model signature by
// naming convention: the trailing "-<digits>" group before the optional
// representation suffix, so "demo-4_fp32" names 4 dimensions and
// "text-embedding-3-small-1536_fp32" names 1536.
//
// The convention belongs to this CLI alone. Signatures that do not follow
// it need an explicit -dim flag.
func ParseDimension(signature string) (int, error) {
	stem := signature
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		stem = stem[:i]
	}

	m := dimensionPattern.FindStringSubmatch(stem)
	if m == nil {
		return 0, fmt.Errorf("cannot parse a dimension from model signature %q; pass -dim", signature)
	}

	dim, err := strconv.Atoi(m[1])
	if err != nil || dim <= 0 {
		return 0, fmt.Errorf("invalid dimension %q in model signature %q", m[1], signature)
	}

	return dim, nil
}
