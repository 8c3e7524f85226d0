package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/qbatchproject/qbatch/internal/common/util"
)

// ResultRecord is the final, append-only outcome of one job. A nil Energy marks
// a failed job.
type ResultRecord struct {
	JobName     string
	BackendName string
	JobID       string
	Energy      *float64
	IsFallback  bool
}

// Summary aggregates a batch's outcomes.
type Summary struct {
	// Records in the order jobs finished, one per attempted job.
	Records   []*ResultRecord
	Succeeded int
	Fallbacks int
	Attempted int
}

func buildSummary(records []*ResultRecord) *Summary {
	s := &Summary{Records: records, Attempted: len(records)}
	for _, r := range records {
		if r.Energy != nil {
			s.Succeeded++
			if r.IsFallback {
				s.Fallbacks++
			}
		}
	}
	return s
}

// String renders the final tabular report enumerating every job's outcome.
func (s *Summary) String() string {
	sb := util.NewTabbedStringBuilder(1, 0, 2, ' ', 0)
	sb.Writef("MOLECULE\tRESULT\tBACKEND\tJOB ID\n")
	for _, r := range s.Records {
		status := "FAILED"
		if r.Energy != nil {
			status = fmt.Sprintf("%.6f", *r.Energy)
			if r.IsFallback {
				status += " (FALLBACK)"
			}
		}
		sb.Writef("%s\t%s\t%s\t%s\n", r.JobName, status, r.BackendName, r.JobID)
	}
	sb.Writef("\n%d/%d successful calculations, fallback used for %d\n", s.Succeeded, s.Attempted, s.Fallbacks)
	return sb.String()
}

// writeResultFile persists one completed job's outcome with the fixed textual
// schema consumed by downstream tooling.
func writeResultFile(dir string, record *ResultRecord, now time.Time) (string, error) {
	timestamp := now.Format("20060102_150405")
	name := fmt.Sprintf("result_%s_%s.txt", record.JobName, timestamp)
	if record.IsFallback {
		name = fmt.Sprintf("result_%s_%s_fallback.txt", record.JobName, timestamp)
	}
	path := filepath.Join(dir, name)

	content := fmt.Sprintf(
		"Molecule: %s\nBackend: %s\nQuantum Job ID: %s\nSQD Energy: %.6f\nFallback Used: %t\nTimestamp: %s\n",
		record.JobName, record.BackendName, record.JobID, *record.Energy, record.IsFallback, timestamp,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}
