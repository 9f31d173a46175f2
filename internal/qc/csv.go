package qc

import (
	"strings"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

// parseCSV splits text into a header line and one row per following line.
//
// Parsing is deliberately naive: lines split on "\n", cells on ",", with no
// quote handling. Headers and cells are kept byte for byte, so a CRLF
// sheet leaves "\r" on its last header and last cells. Cells are zipped
// to headers by position; headers beyond a short line read as "", and a
// later duplicate header overwrites an earlier one. A trailing newline
// yields a final row of empty cells.
func parseCSV(text string) ([]string, []domain.QCRow) {
	lines := strings.Split(text, "\n")
	headers := splitLine(lines[0])

	rows := make([]domain.QCRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := splitLine(line)
		row := make(domain.QCRow, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func splitLine(line string) []string {
	return strings.Split(line, ",")
}

// formatCSV writes the header line unquoted and every data cell wrapped in
// double quotes. Quotes inside values are not escaped.
func formatCSV(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	for _, row := range rows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(v)
			b.WriteByte('"')
		}
	}
	return b.String()
}
