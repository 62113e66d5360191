package redundans

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// SAM flag bits used when deciding whether a record counts toward
// insert-size statistics.
const (
	samUnmapped     = 0x4
	samMateUnmapped = 0x8
	samReverse      = 0x10
	samMateReverse  = 0x20
	samFirstInPair  = 0x40
)

// AlignerEstimator measures insert sizes by streaming reads through an
// external aligner (bwa mem) against the current assembly and parsing
// the SAM records it prints. The aligner does all the alignment work;
// only its textual output is interpreted here.
type AlignerEstimator struct {
	// path to the aligner executable, "bwa" when empty
	Bin string

	Diag *log.Logger
}

// Estimate aligns up to limit pairs of fq1/fq2 against assembly and
// aggregates the per-pair insert sizes and orientations. A dataset
// with no properly aligned pairs yields zero-valued stats, not an
// error.
func (a *AlignerEstimator) Estimate(fq1, fq2, assembly string, mapq, threads, limit int) (InsertStats, error) {
	bin := a.Bin
	if bin == "" {
		bin = "bwa"
	}

	if err := a.index(bin, assembly); err != nil {
		return InsertStats{}, err
	}

	cmd := exec.Command(bin, "mem", "-t", strconv.Itoa(threads), assembly, fq1, fq2)

	// bwa chatters progress on stderr; keep it for failure reports
	var alignerLog bytes.Buffer
	cmd.Stderr = &alignerLog

	out, err := cmd.StdoutPipe()
	if err != nil {
		return InsertStats{}, err
	}
	if err := cmd.Start(); err != nil {
		return InsertStats{}, fmt.Errorf("failed to start aligner %s: %v", bin, err)
	}

	counts, inserts, parseErr := parseSAMPairs(out, mapq, limit)

	// whenever parsing stopped before EOF (enough pairs sampled, or a
	// broken stream), stop the aligner and drain its stdout so it can
	// exit instead of blocking on a full pipe
	if parseErr != nil || (limit > 0 && len(inserts) >= limit) {
		cmd.Process.Kill()
		io.Copy(io.Discard, out)
		cmd.Wait()
	} else if err := cmd.Wait(); err != nil {
		return InsertStats{}, fmt.Errorf("aligner %s failed on %s - %s: %v: %s", bin, fq1, fq2, err, logTail(&alignerLog))
	}

	if parseErr != nil {
		return InsertStats{}, fmt.Errorf("failed to parse aligner output for %s - %s: %v", fq1, fq2, parseErr)
	}

	return summarize(counts, inserts)
}

// logTail trims a captured tool log to its last few KB so errors stay
// readable while keeping the part that explains the failure.
func logTail(b *bytes.Buffer) string {
	s := strings.TrimSpace(b.String())
	if len(s) > 2048 {
		s = "..." + s[len(s)-2048:]
	}
	return s
}

// index builds the aligner's index for assembly unless one is already
// on disk next to it. Each scaffolding round produces a fresh assembly
// that has never been indexed.
func (a *AlignerEstimator) index(bin, assembly string) error {
	if _, err := os.Stat(assembly + ".bwt"); err == nil {
		return nil
	}
	a.Diag.Printf(" Indexing %s ...", assembly)

	cmd := exec.Command(bin, "index", assembly)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to index %s: %v: %s", assembly, err, output)
	}
	return nil
}

// parseSAMPairs scans SAM text for first-in-pair records where both
// mates mapped with sufficient quality and a positive template length,
// recording the orientation (from the strand flag bits) and insert
// size of each, up to limit pairs. A scan failure (eg a record larger
// than the buffer) is an error, not an empty result: silently dropping
// the rest of the stream would skew every statistic after it.
func parseSAMPairs(r io.Reader, minMapq, limit int) (counts [4]int, inserts []float64, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "@") {
			continue
		}
		fields := strings.SplitN(line, "\t", 10)
		if len(fields) < 9 {
			continue
		}

		flag, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		if flag&samFirstInPair == 0 || flag&samUnmapped != 0 || flag&samMateUnmapped != 0 {
			continue
		}

		quality, err := strconv.Atoi(fields[4])
		if err != nil || quality < minMapq {
			continue
		}

		tlen, err := strconv.Atoi(fields[8])
		if err != nil || tlen <= 0 {
			continue
		}

		orientation := 0
		if flag&samReverse != 0 {
			orientation |= 2
		}
		if flag&samMateReverse != 0 {
			orientation |= 1
		}

		counts[orientation]++
		inserts = append(inserts, float64(tlen))
		if limit > 0 && len(inserts) >= limit {
			break
		}
	}

	return counts, inserts, sc.Err()
}

// summarize folds per-pair insert sizes into the aggregate statistics
// the classifier consumes.
func summarize(counts [4]int, inserts []float64) (InsertStats, error) {
	if len(inserts) == 0 {
		return InsertStats{}, nil
	}

	mean, err := stats.Mean(inserts)
	if err != nil {
		return InsertStats{}, err
	}
	median, err := stats.Median(inserts)
	if err != nil {
		return InsertStats{}, err
	}
	stdDev, err := stats.StandardDeviation(inserts)
	if err != nil {
		return InsertStats{}, err
	}

	return InsertStats{Mean: mean, Median: median, StdDev: stdDev, Orientations: counts}, nil
}
