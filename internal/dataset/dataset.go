package dataset

import (
	"fmt"
	"strings"

	"github.com/ciricc/hwexplore/internal/explore"
)

// ErrUnavailableInput is returned when a scale has neither a file on disk
// nor permission to generate one.
var ErrUnavailableInput = fmt.Errorf("dataset: %w", explore.ErrUnavailableInput)

// ReadLength is the length of every standard read, in bases.
const ReadLength = 150

// Record is one FASTQ entry. Qual is nil for records read without qualities.
type Record struct {
	ID   string
	Seq  []byte
	Qual []byte
}

var fileNames = map[string]string{
	explore.ScaleTiny.Name:      "tiny_100_150bp.fq",
	explore.ScaleSmall.Name:     "small_1k_150bp.fq",
	explore.ScaleMedium.Name:    "medium_10k_150bp.fq",
	explore.ScaleLarge.Name:     "large_100k_150bp.fq",
	explore.ScaleVeryLarge.Name: "vlarge_1m_150bp.fq",
	explore.ScaleHuge.Name:      "huge_10m_150bp.fq",
}

// FileName is the dataset file a scale is read from. Scales outside the
// standard set fall back to "<name>_<size>_150bp.fq".
func FileName(s explore.Scale) string {
	if n, ok := fileNames[s.Name]; ok {
		return n
	}
	return fmt.Sprintf("%s_%d_%dbp.fq", strings.ToLower(s.Name), s.Size, ReadLength)
}
