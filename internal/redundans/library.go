// Package redundans drives the heterozygous genome assembly pipeline:
// reduction, scaffolding and gap closing. Heavy lifting (alignment,
// scaffold building, gap filling) is delegated to external tools; this
// package classifies read libraries, decides what to run next, and
// chains the intermediate assemblies on disk.
package redundans

import (
	"fmt"
	"log"
	"sort"
)

// orientationNames indexes the four pair arrangements. Ties in the
// orientation vote resolve to the first of these.
var orientationNames = [4]string{"FF", "FR", "RF", "RR"}

// minSampledPairs is the floor on the pair-sampling cap so that
// insert-size estimates stay statistically stable.
const minSampledPairs = 1000000

// newSetFactor opens a new library set whenever a dataset's median
// insert exceeds this multiple of the current set's first mean insert.
const newSetFactor = 1.5

// InsertStats is what the aligner-backed estimator reports for one
// paired dataset: aggregate insert-size statistics plus how many pairs
// supported each of the four orientations.
type InsertStats struct {
	Mean   float64
	Median float64
	StdDev float64

	// pair counts per orientation, indexed as orientationNames
	Orientations [4]int
}

// Pairs returns the total number of pairs behind the estimate.
func (s InsertStats) Pairs() int {
	n := 0
	for _, c := range s.Orientations {
		n += c
	}
	return n
}

// RawPairedDataset is one forward/reverse FASTQ pair with the
// statistics measured against a particular assembly. Re-measured as a
// new value whenever the assembly changes.
type RawPairedDataset struct {
	Forward string
	Reverse string
	Stats   InsertStats
}

// LibrarySet groups paired datasets that share one insert-size regime.
// The slices are parallel: entry i of each describes the same library.
type LibrarySet struct {
	Names        []string
	ForwardFiles []string
	ReverseFiles []string
	Orientations []string
	MeanInserts  []int
	StdDevFracs  []float64
}

// Len returns the number of libraries in the set.
func (s *LibrarySet) Len() int { return len(s.Names) }

func (s *LibrarySet) add(name, fq1, fq2, orientation string, meanInsert int, stdDevFrac float64) {
	s.Names = append(s.Names, name)
	s.ForwardFiles = append(s.ForwardFiles, fq1)
	s.ReverseFiles = append(s.ReverseFiles, fq2)
	s.Orientations = append(s.Orientations, orientation)
	s.MeanInserts = append(s.MeanInserts, meanInsert)
	s.StdDevFracs = append(s.StdDevFracs, stdDevFrac)
}

// InsertSizeEstimator measures insert-size statistics for one paired
// dataset against an assembly, sampling at most limit pairs.
type InsertSizeEstimator interface {
	Estimate(fq1, fq2, assembly string, mapq, threads, limit int) (InsertStats, error)
}

// Classifier groups raw paired datasets into library sets ordered by
// insert size. Diagnostics go to Diag, never to a global stream.
type Classifier struct {
	Estimator InsertSizeEstimator

	// warn when the major orientation holds less than this fraction of pairs
	MajorityFrac float64

	// warn when stddev/mean exceeds this fraction
	VariabilityFrac float64

	Diag *log.Logger
}

// orientationVote picks the majority orientation from the four counts.
// Ties resolve to the earliest index. A majority below MajorityFrac of
// all pairs is reported as a data-quality warning, never an error.
func (c *Classifier) orientationVote(stats InsertStats, fq1, fq2 string) string {
	maxi := 0
	for i, count := range stats.Orientations {
		if count > stats.Orientations[maxi] {
			maxi = i
		}
	}
	orientation := orientationNames[maxi]

	total := stats.Pairs()
	if total > 0 {
		frac := float64(stats.Orientations[maxi]) / float64(total)
		if frac < c.MajorityFrac {
			c.Diag.Printf("[WARNING] Poor quality: major orientation (%s) represents %.1f%% of pairs in %s - %s: %v",
				orientation, 100*frac, fq1, fq2, stats.Orientations)
		}
	}

	return orientation
}

// Classify measures every forward/reverse pair in fastq against the
// assembly and clusters the datasets into library sets by insert size.
//
// Datasets are consumed in ascending mean-insert order; a new set opens
// whenever the dataset's median insert exceeds 1.5x the first mean
// insert recorded in the currently open set. Sets are never merged or
// revisited once closed. Datasets for which the estimator found no
// valid pairs are dropped with a diagnostic; an all-dropped input
// yields an empty (non-error) classification, which callers treat as
// "skip library-dependent stages".
func (c *Classifier) Classify(fastq []string, assembly string, mapq, threads, limit int) ([]LibrarySet, error) {
	if len(fastq)%2 != 0 {
		return nil, fmt.Errorf("odd number of FASTQ files (%d): reads must come in forward/reverse pairs", len(fastq))
	}

	// keep the sampling cap high enough for stable statistics
	if limit < minSampledPairs {
		limit = minSampledPairs
	}

	var datasets []RawPairedDataset
	for i := 0; i < len(fastq); i += 2 {
		fq1, fq2 := fastq[i], fastq[i+1]

		// sample 1% of the mapped-read cap per dataset
		stats, err := c.Estimator.Estimate(fq1, fq2, assembly, mapq, threads, limit/100)
		if err != nil {
			return nil, fmt.Errorf("insert size estimation failed for %s - %s: %w", fq1, fq2, err)
		}
		if stats.Pairs() == 0 || stats.Mean <= 0 {
			c.Diag.Printf("[WARNING] No properly aligned pairs in %s - %s: skipping dataset", fq1, fq2)
			continue
		}

		datasets = append(datasets, RawPairedDataset{Forward: fq1, Reverse: fq2, Stats: stats})
	}

	// ascending mean insert, original input order on ties
	sort.SliceStable(datasets, func(i, j int) bool {
		return datasets[i].Stats.Mean < datasets[j].Stats.Mean
	})

	var sets []LibrarySet
	rank := 1
	for _, ds := range datasets {
		if len(sets) == 0 || ds.Stats.Median > newSetFactor*float64(sets[len(sets)-1].MeanInserts[0]) {
			sets = append(sets, LibrarySet{})
			rank = 1
		}
		cur := &sets[len(sets)-1]

		orientation := c.orientationVote(ds.Stats, ds.Forward, ds.Reverse)

		stdFrac := ds.Stats.StdDev / ds.Stats.Mean
		if stdFrac > c.VariabilityFrac {
			c.Diag.Printf("[WARNING] Highly variable insert size (%.0f +- %.2f) in %s - %s!",
				ds.Stats.Mean, ds.Stats.StdDev, ds.Forward, ds.Reverse)
		}
		// SSPACE only accepts deviation fractions up to 1.0
		if stdFrac > 1 {
			stdFrac = 1.0
		}

		cur.add(fmt.Sprintf("lib%d", rank), ds.Forward, ds.Reverse, orientation, int(ds.Stats.Mean), stdFrac)
		rank++
	}

	return sets, nil
}
