/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// humanReadableSize formats bytes with SI prefixes, e.g. 1.5 kB.
func humanReadableSize(bytes int64) string {
	if bytes < 1000 {
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes)
	prefix := 0
	for size >= 1000 && prefix < len("kMGTPE") {
		size /= 1000
		prefix++
	}

	return fmt.Sprintf("%.1f %cB", size, "kMGTPE"[prefix-1])
}
