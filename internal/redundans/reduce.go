package redundans

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// reductionHeader labels the tab-separated summary line the reduction
// collaborator reports for the processed assembly.
const reductionHeader = "#file name\tgenome size\tcontigs\theterozygous size\t[%]\theterozygous contigs\t[%]\tidentity [%]\tpossible joins\thomozygous size\t[%]\thomozygous contigs\t[%]"

// reducer invokes the external homozygous-contig reduction tool. The
// tool streams the reduced assembly to stdout and its summary line to
// stderr; both are captured here.
type reducer struct {
	bin       string
	identity  float64
	overlap   float64
	minLength int

	diag *log.Logger
}

// run reduces contigs into out, passing the current library
// classification along as paired-read evidence for join detection.
func (r *reducer) run(dir *RunDir, contigs Artifact, out string, libs []LibrarySet, limit int) (Artifact, error) {
	// merge every set into one library description for the reducer
	merged := LibrarySet{}
	for i := range libs {
		set := &libs[i]
		for k := range set.Names {
			merged.add(fmt.Sprintf("lib%d", merged.Len()+1),
				set.ForwardFiles[k], set.ReverseFiles[k], set.Orientations[k],
				set.MeanInserts[k], set.StdDevFracs[k])
		}
	}
	libFile := dir.Join("_reduction.libs.txt")
	if err := writeLibraryFile(libFile, &merged); err != nil {
		return Artifact{}, err
	}

	contigsAbs, err := filepath.Abs(contigs.Resolve())
	if err != nil {
		return Artifact{}, err
	}

	outFile, err := os.Create(out)
	if err != nil {
		return Artifact{}, err
	}
	defer outFile.Close()

	var summary bytes.Buffer
	cmd := exec.Command(r.bin,
		"--identity", strconv.FormatFloat(r.identity, 'g', -1, 64),
		"--overlap", strconv.FormatFloat(r.overlap, 'g', -1, 64),
		"--minLength", strconv.Itoa(r.minLength),
		"--limit", strconv.Itoa(limit),
		"--lib", libFile,
		contigsAbs,
	)
	cmd.Stdout = outFile
	cmd.Stderr = &summary
	if err := cmd.Run(); err != nil {
		return Artifact{}, fmt.Errorf("reduction failed: %v\n%s", err, summary.String())
	}

	if line := strings.TrimRight(summary.String(), "\n"); line != "" {
		r.diag.Print(line)
	}

	return NewArtifact(out), nil
}
