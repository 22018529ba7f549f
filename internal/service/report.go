package service

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"github.com/kidney-chain-server/internal/domain"
)

// WriteReport renders a chain report in the semicolon-separated text layout coordinators
// archive next to each uploaded file.
func WriteReport(w io.Writer, report *domain.ChainReport, generatedAt time.Time) error {
	bw := bufio.NewWriter(w)

	line := func(parts ...string) {
		for _, p := range parts {
			bw.WriteString(p)
		}
		bw.WriteByte('\n')
	}

	line(">LOG: ", generatedAt.Format("2006-01-02 15:04:05"))
	line("ORIGINAL FILE HASH: ", report.GraphID)
	line("ALTRUIST: ", report.Altruist)
	line("DEPTH: ", strconv.Itoa(report.Depth))
	line(">TRANSPLANTS:")
	line("DONOR;RECIPIENT;SUCCESS_PROBABILITY;VALUE")
	for _, t := range report.Log.Candidates {
		line(t.Donor, ";", t.Recipient, ";", formatNumber(t.SuccessProbability), ";", formatNumber(t.Value))
	}

	line(">PARAMETERS")
	line(">>IGNORE FAILURE PROBABILITY: ", strconv.FormatBool(report.IgnoreFailureProbability))
	line(">>IGNORED DONORS")
	for _, id := range report.IgnoredDonors {
		line(id)
	}
	line(">>IGNORED RECIPIENTS")
	for _, id := range report.IgnoredRecipients {
		line(id)
	}
	line(">>CROSSED TEST POSITIVES")
	line("DONOR;RECIPIENT")
	for _, hit := range report.Log.CrossedTests {
		line(hit.Donor, ";", hit.Receiver)
	}
	if len(report.Log.Errors) > 0 {
		line(">ERRORS")
		for _, msg := range report.Log.Errors {
			line(msg)
		}
	}
	line()
	bw.WriteString("Time elapsed: " + formatNumber(report.Elapsed.Seconds()) + " s")

	return bw.Flush()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
