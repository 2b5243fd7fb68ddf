/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

var sizeUnits = []string{"B", "kB", "MB", "GB"}

// humanReadableSize renders the length of a response body for SERVE log lines.
// Status pages and QR codes stay well under a megabyte, so GB is the ceiling.
func humanReadableSize(n int) string {
	size := float64(n)

	i := 0
	for size >= 1000 && i < len(sizeUnits)-1 {
		size /= 1000
		i++
	}

	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}

	return fmt.Sprintf("%.1f %s", size, sizeUnits[i])
}
