package redundans

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq/linear"
)

// filterPairs copies read pairs from fq1/fq2 into out1/out2, dropping
// pairs where either mate is shorter than minLen or has mean base
// quality below minQual. Mates longer than maxLen are trimmed down to
// it. At most limit pairs are written when limit > 0. Returns the
// number of pairs kept.
func filterPairs(fq1, fq2, out1, out2 string, minLen, maxLen, limit, minQual int) (int, error) {
	in1, err := os.Open(fq1)
	if err != nil {
		return 0, err
	}
	defer in1.Close()
	in2, err := os.Open(fq2)
	if err != nil {
		return 0, err
	}
	defer in2.Close()

	o1, err := os.Create(out1)
	if err != nil {
		return 0, err
	}
	defer o1.Close()
	o2, err := os.Create(out2)
	if err != nil {
		return 0, err
	}
	defer o2.Close()

	r1 := fastq.NewReader(in1, linear.NewQSeq("", nil, alphabet.DNAredundant, alphabet.Sanger))
	r2 := fastq.NewReader(in2, linear.NewQSeq("", nil, alphabet.DNAredundant, alphabet.Sanger))
	w1 := fastq.NewWriter(o1)
	w2 := fastq.NewWriter(o2)

	kept := 0
	for {
		if limit > 0 && kept >= limit {
			break
		}

		s1, err := r1.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return kept, fmt.Errorf("failed to parse %s: %v", fq1, err)
		}
		s2, err := r2.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return kept, fmt.Errorf("failed to parse %s: %v", fq2, err)
		}

		q1 := s1.(*linear.QSeq)
		q2 := s2.(*linear.QSeq)

		if !keepRead(q1, minLen, minQual) || !keepRead(q2, minLen, minQual) {
			continue
		}

		trimRead(q1, maxLen)
		trimRead(q2, maxLen)

		if _, err := w1.Write(q1); err != nil {
			return kept, err
		}
		if _, err := w2.Write(q2); err != nil {
			return kept, err
		}
		kept++
	}

	return kept, nil
}

// keepRead accepts reads at least minLen long with mean quality at or
// above minQual.
func keepRead(s *linear.QSeq, minLen, minQual int) bool {
	if s.Len() < minLen {
		return false
	}
	if minQual <= 0 {
		return true
	}

	sum := 0
	for _, ql := range s.Seq {
		sum += int(ql.Q)
	}
	return sum >= minQual*s.Len()
}

func trimRead(s *linear.QSeq, maxLen int) {
	if maxLen > 0 && s.Len() > maxLen {
		s.Seq = s.Seq[:maxLen]
	}
}
