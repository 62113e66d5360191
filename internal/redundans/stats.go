package redundans

import (
	"fmt"
	"os"
	"sort"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// FastaStats summarizes one assembly FASTA file, in bp.
type FastaStats struct {
	File        string
	Contigs     int
	Bases       int
	GC          float64 // percent of called bases
	ContigsOver int     // contigs longer than 1 kb
	BasesOver   int     // bases in contigs longer than 1 kb
	N50         int
	N90         int
	Ns          int
	Longest     int
}

// statsHeader matches the columns of TabLine.
const statsHeader = "#fname\tcontigs\tbases\tGC [%]\tcontigs >1kb\tbases in contigs >1kb\tN50\tN90\tNs\tlongest"

// TabLine renders the stats as one tab-separated report line.
func (s FastaStats) TabLine() string {
	return fmt.Sprintf("%s\t%d\t%d\t%.2f\t%d\t%d\t%d\t%d\t%d\t%d",
		s.File, s.Contigs, s.Bases, s.GC, s.ContigsOver, s.BasesOver, s.N50, s.N90, s.Ns, s.Longest)
}

// fastaStats scans an assembly file and computes the per-file summary:
// contig and base counts, GC%, >1kb tallies, N50/N90 and the longest
// contig length.
func fastaStats(path string) (FastaStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return FastaStats{}, err
	}
	defer f.Close()

	s := FastaStats{File: path}

	var lengths []int
	var gc int

	t := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(f, t))
	for sc.Next() {
		seq := sc.Seq().(*linear.Seq)

		n := seq.Len()
		lengths = append(lengths, n)
		s.Contigs++
		s.Bases += n
		if n > 1000 {
			s.ContigsOver++
			s.BasesOver += n
		}

		for _, l := range seq.Seq {
			switch l {
			case 'G', 'C', 'g', 'c':
				gc++
			case 'N', 'n':
				s.Ns++
			}
		}
	}
	if err := sc.Error(); err != nil {
		return FastaStats{}, fmt.Errorf("failed to parse %s: %v", path, err)
	}

	if called := s.Bases - s.Ns; called > 0 {
		s.GC = 100 * float64(gc) / float64(called)
	}

	if len(lengths) > 0 {
		sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
		s.Longest = lengths[0]
		s.N50 = nStat(lengths, s.Bases, 0.5)
		s.N90 = nStat(lengths, s.Bases, 0.9)
	}

	return s, nil
}

// nStat returns the length of the contig at which the cumulative sum
// of descending-sorted lengths crosses frac of the total.
func nStat(sorted []int, total int, frac float64) int {
	threshold := frac * float64(total)
	cum := 0
	for _, n := range sorted {
		cum += n
		if float64(cum) >= threshold {
			return n
		}
	}
	return 0
}
