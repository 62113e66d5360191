package redundans

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// gapCloser fills scaffold gaps per library set through one of two
// external backends: GapCloser (config-file driven, reads filtered
// first) or Gap2Seq (raw read lists).
type gapCloser struct {
	dir *RunDir

	bin        string
	gap2seqBin string
	useGap2Seq bool

	threads    int
	overlap    int
	minReadLen int
	maxReadLen int
	iters      int
	mapq       int
	limit      int

	diag    *log.Logger
	verbose bool

	// per-round output paths in the order they were produced, for the
	// final report
	produced []string
}

func (g *gapCloser) run(scaffolds Artifact, libs []LibrarySet) (Artifact, error) {
	if g.useGap2Seq {
		return g.runGap2Seq(scaffolds, libs)
	}
	return g.runGapCloser(scaffolds, libs)
}

// buildConfig filters each eligible library's reads and writes the
// GapCloser config for one library set. Only FR and RF libraries are
// supported (reverse_seq 0 and 1); others are skipped with a
// diagnostic. Returns ok=false when no library survived, which the
// caller treats as "skip this set", never as a failure.
func (g *gapCloser) buildConfig(setIndex int, set *LibrarySet) (string, bool, error) {
	blocks := []string{fmt.Sprintf("max_rd_len=%d", g.maxReadLen)}

	for k := range set.Names {
		fq1, fq2 := set.ForwardFiles[k], set.ReverseFiles[k]

		var reverseSeq int
		switch set.Orientations[k] {
		case "FR":
			reverseSeq = 0
		case "RF":
			reverseSeq = 1
		default:
			g.diag.Printf("  Skipping unsupported library %s in: %s - %s!", set.Orientations[k], fq1, fq2)
			continue
		}

		rank := k + 1
		fn1 := g.dir.Join(fmt.Sprintf("_gapcloser.%d.%d.%s.fq", setIndex, rank, filepath.Base(fq1)))
		fn2 := g.dir.Join(fmt.Sprintf("_gapcloser.%d.%d.%s.fq", setIndex, rank, filepath.Base(fq2)))
		kept, err := filterPairs(fq1, fq2, fn1, fn2, g.minReadLen, g.maxReadLen, g.limit, g.mapq)
		if err != nil {
			return "", false, err
		}
		if kept == 0 {
			g.diag.Printf("  Skipping library with no reads passing filters in: %s - %s!", fq1, fq2)
			continue
		}

		blocks = append(blocks, fmt.Sprintf(
			"[LIB]\navg_ins=%d\nreverse_seq=%d\nasm_flags=3\nrank=%d\npair_num_cutoff=5\nmap_len=35\nq1=%s\nq2=%s\n",
			set.MeanInserts[k], reverseSeq, rank, fn1, fn2))
	}

	if len(blocks) < 2 {
		return "", false, nil
	}

	configFn := g.dir.Join(fmt.Sprintf("_gapcloser.%d.conf", setIndex))
	if err := os.WriteFile(configFn, []byte(strings.Join(blocks, "\n")), 0644); err != nil {
		return "", false, err
	}
	return configFn, true, nil
}

// runGapCloser chains GapCloser rounds per library set, each round
// consuming the previous round's output.
func (g *gapCloser) runGapCloser(scaffolds Artifact, libs []LibrarySet) (Artifact, error) {
	pout := scaffolds

	for i := range libs {
		setIndex := i + 1
		configFn, ok, err := g.buildConfig(setIndex, &libs[i])
		if err != nil {
			return Artifact{}, err
		}
		if !ok {
			continue
		}

		for j := 1; j <= g.iters; j++ {
			if g.verbose {
				g.diag.Printf(" iteration %d.%d ...", setIndex, j)
			}

			out := g.dir.Join(fmt.Sprintf("_gapcloser.%d.%d.fa", setIndex, j))
			if err := g.invoke(out, g.bin,
				"-t", strconv.Itoa(g.threads),
				"-p", strconv.Itoa(g.overlap),
				"-l", strconv.Itoa(g.maxReadLen),
				"-a", pout.Resolve(),
				"-b", configFn,
				"-o", out,
			); err != nil {
				return Artifact{}, err
			}
			pout = NewArtifact(out)
			g.produced = append(g.produced, out)
		}
	}

	return pout, nil
}

// runGap2Seq runs one Gap2Seq pass per library set with the raw
// (unfiltered) reads of its supported libraries, comma-joined.
func (g *gapCloser) runGap2Seq(scaffolds Artifact, libs []LibrarySet) (Artifact, error) {
	pout := scaffolds

	for i := range libs {
		set := &libs[i]

		var reads []string
		for k := range set.Names {
			switch set.Orientations[k] {
			case "FR", "RF":
				reads = append(reads, set.ForwardFiles[k], set.ReverseFiles[k])
			default:
				g.diag.Printf("  Skipping unsupported library %s in: %s - %s!",
					set.Orientations[k], set.ForwardFiles[k], set.ReverseFiles[k])
			}
		}
		if len(reads) == 0 {
			continue
		}

		if g.verbose {
			g.diag.Printf(" iteration %d ...", i+1)
		}

		out := g.dir.Join(fmt.Sprintf("_gap2seq.%d.%d.fa", i+1, set.Len()))
		if err := g.invoke(out, g.gap2seqBin,
			"-nb-cores", strconv.Itoa(g.threads),
			"-scaffolds", pout.Resolve(),
			"-filled", out,
			"-reads", strings.Join(reads, ","),
		); err != nil {
			return Artifact{}, err
		}
		pout = NewArtifact(out)
		g.produced = append(g.produced, out)
	}

	return pout, nil
}

// invoke runs one gap-filler round with stdout/stderr captured to
// <out>.log. A non-zero exit is fatal and names the log for forensics.
func (g *gapCloser) invoke(out, bin string, args ...string) error {
	logPath := out + ".log"
	logFile, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.Command(bin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gap closing failed at %s (see %s): %v", filepath.Base(out), logPath, err)
	}
	return nil
}
