/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package files

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatEntriesTable renders a file listing as a plain-text table for the
// CLI. The current export is marked with an asterisk.
func FormatEntriesTable(entries []Entry) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-3s%-35s %-12s %-20s %8s\n",
		"", "FILE NAME", "DATE", "MODIFIED", "LINES"))
	sb.WriteString(strings.Repeat("=", 80) + "\n")

	for _, e := range entries {
		marker := ""
		if e.IsCurrent {
			marker = " *"
		}
		lines := "N/A"
		if e.LineCount > 0 {
			lines = strconv.Itoa(e.LineCount)
		}
		sb.WriteString(fmt.Sprintf("%-3s%-35s %-12s %-20s %8s\n",
			marker,
			truncate(e.Name, 35),
			e.Date,
			e.DateTime,
			lines,
		))
	}

	return sb.String()
}

// truncate shortens a string to maxLen, appending "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
