package redundans

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// scaffolder runs the external scaffold builder (SSPACE) over every
// library set, re-estimating insert sizes between sets. Rounds are
// strictly sequential: each consumes the previous round's output.
type scaffolder struct {
	bin   string
	dir   *RunDir
	fastq []string

	threads int
	joins   int
	limit   int
	mapq    int
	iters   int

	classifier *Classifier
	diag       *log.Logger
	verbose    bool

	// per-round output paths in the order they were produced, for the
	// final report
	produced []string
}

// run processes library sets in classification order (ascending insert
// size). After the configured rounds for a set, libraries are
// re-classified against the just-produced assembly: insert-size
// estimates for wider libraries only become reliable once the tighter
// ones have been resolved. The refreshed classification replaces the
// remaining sets; finished sets are never revisited.
func (s *scaffolder) run(input Artifact, libs []LibrarySet) (Artifact, []LibrarySet, error) {
	pout := input

	for i := 0; i < len(libs); i++ {
		set := libs[i]
		for j := 1; j <= s.iters; j++ {
			if s.verbose {
				s.diag.Printf(" iteration %d.%d ...", i+1, j)
			}
			out, err := s.round(fmt.Sprintf("_sspace.%d.%d", i+1, j), pout, &set)
			if err != nil {
				return Artifact{}, nil, err
			}
			pout = out
			s.produced = append(s.produced, out.Resolve())
		}

		refreshed, err := s.classifier.Classify(s.fastq, pout.Resolve(), s.mapq, s.threads, s.limit)
		if err != nil {
			return Artifact{}, nil, err
		}
		libs = refreshed
	}

	return pout, libs, nil
}

// round performs one scaffolder invocation. SSPACE writes its result
// under a subdirectory named after the output prefix; the final
// scaffolds file is linked up to <base>.fa in the run directory so the
// next round can chain off it.
func (s *scaffolder) round(base string, input Artifact, set *LibrarySet) (Artifact, error) {
	libFile := s.dir.Join(base + ".libs.txt")
	if err := writeLibraryFile(libFile, set); err != nil {
		return Artifact{}, err
	}

	inputAbs, err := filepath.Abs(input.Resolve())
	if err != nil {
		return Artifact{}, err
	}
	libAbs, err := filepath.Abs(libFile)
	if err != nil {
		return Artifact{}, err
	}

	logPath := s.dir.Join(base + ".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return Artifact{}, err
	}
	defer logFile.Close()

	cmd := exec.Command(s.bin,
		"-l", libAbs,
		"-s", inputAbs,
		"-x", "0",
		"-T", strconv.Itoa(s.threads),
		"-k", strconv.Itoa(s.joins),
		"-a", strconv.Itoa(s.limit),
		"-b", base,
	)
	cmd.Dir = s.dir.Path()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return Artifact{}, fmt.Errorf("scaffolder failed at %s (see %s): %v", base, logPath, err)
	}

	// eg _sspace.1.1/_sspace.1.1.final.scaffolds.fasta -> _sspace.1.1.fa
	target := filepath.Join(base, base+".final.scaffolds.fasta")
	out := s.dir.Join(base + ".fa")
	if err := link(target, out); err != nil {
		return Artifact{}, fmt.Errorf("missing scaffolder output for %s: %v", base, err)
	}

	return NewArtifact(out), nil
}

// writeLibraryFile renders a library set as the tab-separated library
// description the scaffolder consumes: name, aligner, forward and
// reverse reads, mean insert, deviation fraction, orientation.
func writeLibraryFile(path string, set *LibrarySet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for k := range set.Names {
		fq1, err := filepath.Abs(set.ForwardFiles[k])
		if err != nil {
			return err
		}
		fq2, err := filepath.Abs(set.ReverseFiles[k])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f, "%s\tbwa\t%s\t%s\t%d\t%.2f\t%s\n",
			set.Names[k], fq1, fq2, set.MeanInserts[k], set.StdDevFracs[k], set.Orientations[k])
		if err != nil {
			return err
		}
	}

	return nil
}
