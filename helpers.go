// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// maxFormattedValues is the number of values printed by formatValue before eliding the rest.
const maxFormattedValues = 8

// formatValue returns a short, printable representation of v.
func formatValue(v TagValue) string {
	switch vv := v.(type) {
	case nil:
		return "<nil>"
	case ASCII:
		return strconv.Quote(printableString(string(vv)))
	case Undefined:
		return fmt.Sprintf("(Binary data %d bytes)", len(vv))
	case IntegerList:
		return formatList(vv, func(i int64) string { return strconv.FormatInt(i, 10) })
	case DoubleList:
		return formatList(vv, func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) })
	case RationalList:
		return formatList(vv, Rational.String)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatList[T any](vals []T, format func(T) string) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(" ")
		}
		if i == maxFormattedValues {
			fmt.Fprintf(&sb, "... (%d more)", len(vals)-i)
			break
		}
		sb.WriteString(format(v))
	}
	return sb.String()
}

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}
