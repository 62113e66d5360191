package redundans

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// fakeScaffolder is a stand-in for SSPACE: it records its invocation,
// then writes the round's final scaffolds file by appending a marker
// to the input assembly, mimicking the real tool's output layout.
const fakeScaffolder = `#!/bin/sh
input=""
base=""
while [ $# -gt 0 ]; do
	case "$1" in
	-s) input="$2"; shift 2 ;;
	-b) base="$2"; shift 2 ;;
	*) shift ;;
	esac
done
echo "$base" >> invocations.txt
mkdir -p "$base"
{ cat "$input"; echo ">joined_$base"; echo "ACGT"; } > "$base/$base.final.scaffolds.fasta"
`

func writeFakeScaffolder(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sspace")
	if err := os.WriteFile(path, []byte(fakeScaffolder), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_scaffolder_run(t *testing.T) {
	dir, err := NewRunDir(filepath.Join(t.TempDir(), "run"))
	if err != nil {
		t.Fatal(err)
	}

	reads := t.TempDir()
	record := [2]string{"r1", "ACGTACGTACGT"}
	fastq := []string{
		writeFastq(t, reads, "pe_1.fq", record), writeFastq(t, reads, "pe_2.fq", record),
		writeFastq(t, reads, "mp_1.fq", record), writeFastq(t, reads, "mp_2.fq", record),
	}

	// two sets: the paired-end and the mate-pair regime
	est := &stubEstimator{stats: map[string]InsertStats{
		fastq[0]: pairStats(300, 300, 30, [4]int{0, 100, 0, 0}),
		fastq[2]: pairStats(1200, 1200, 240, [4]int{0, 0, 100, 0}),
	}}
	var diag bytes.Buffer
	classifier := newTestClassifier(est, &diag)

	input := filepath.Join(t.TempDir(), "reduced.fa")
	if err := os.WriteFile(input, []byte(">c1\nACGTACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}

	libs, err := classifier.Classify(fastq, input, 10, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 2 {
		t.Fatalf("expected 2 library sets, got %d", len(libs))
	}

	s := &scaffolder{
		bin:        writeFakeScaffolder(t),
		dir:        dir,
		fastq:      fastq,
		threads:    1,
		joins:      5,
		limit:      0,
		mapq:       10,
		iters:      2,
		classifier: classifier,
		diag:       log.New(&diag, "", 0),
	}

	final, refreshed, err := s.run(NewArtifact(input), libs)
	if err != nil {
		t.Fatal(err)
	}

	// 2 sets x 2 iterations = exactly 4 sequential invocations
	invocations, err := os.ReadFile(dir.Join("invocations.txt"))
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Fields(string(invocations))
	want := []string{"_sspace.1.1", "_sspace.1.2", "_sspace.2.1", "_sspace.2.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("invocations = %v, want %v", got, want)
	}

	// each round consumed the previous round's output, so the final
	// assembly carries every round's marker in order
	content, err := os.ReadFile(final.Resolve())
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	if !strings.HasPrefix(text, ">c1\n") {
		t.Errorf("final assembly lost the stage input: %q", text)
	}
	last := -1
	for _, marker := range want {
		idx := strings.Index(text, ">joined_"+marker)
		if idx < 0 {
			t.Fatalf("final assembly missing marker for %s", marker)
		}
		if idx < last {
			t.Errorf("marker %s out of order", marker)
		}
		last = idx
	}

	// round outputs are recorded in production order for the report
	producedWant := make([]string, len(want))
	for i, marker := range want {
		producedWant[i] = dir.Join(marker + ".fa")
	}
	if !reflect.DeepEqual(s.produced, producedWant) {
		t.Errorf("produced = %v, want %v", s.produced, producedWant)
	}

	// classification was refreshed against the newly produced assembly
	if len(refreshed) != 2 {
		t.Errorf("refreshed classification has %d sets, want 2", len(refreshed))
	}

	// per-round logs and library files were produced
	for _, marker := range want {
		if _, err := os.Stat(dir.Join(marker + ".log")); err != nil {
			t.Errorf("missing round log: %v", err)
		}
		if _, err := os.Stat(dir.Join(marker + ".libs.txt")); err != nil {
			t.Errorf("missing round library file: %v", err)
		}
	}
}

func Test_scaffolder_roundFailure(t *testing.T) {
	dir, err := NewRunDir(filepath.Join(t.TempDir(), "run"))
	if err != nil {
		t.Fatal(err)
	}

	failing := filepath.Join(t.TempDir(), "sspace")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatal(err)
	}

	input := filepath.Join(t.TempDir(), "reduced.fa")
	if err := os.WriteFile(input, []byte(">c1\nACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var diag bytes.Buffer
	s := &scaffolder{
		bin:        failing,
		dir:        dir,
		threads:    1,
		iters:      1,
		classifier: newTestClassifier(&stubEstimator{}, &diag),
		diag:       log.New(&diag, "", 0),
	}

	set := &LibrarySet{}
	set.add("lib1", "a_1.fq", "a_2.fq", "FR", 300, 0.2)

	_, _, err = s.run(NewArtifact(input), []LibrarySet{*set})
	if err == nil {
		t.Fatal("expected a fatal error from the failing scaffolder")
	}
	if !strings.Contains(err.Error(), ".log") {
		t.Errorf("error should name the captured log, got: %v", err)
	}
}

func Test_writeLibraryFile(t *testing.T) {
	set := &LibrarySet{}
	set.add("lib1", "a_1.fq", "a_2.fq", "FR", 300, 0.25)
	set.add("lib2", "b_1.fq", "b_2.fq", "RF", 320, 1.0)

	path := filepath.Join(t.TempDir(), "libs.txt")
	if err := writeLibraryFile(path, set); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("library file has %d lines, want 2", len(lines))
	}
	first := strings.Split(lines[0], "\t")
	if first[0] != "lib1" || first[4] != "300" || first[5] != "0.25" || first[6] != "FR" {
		t.Errorf("unexpected library line: %v", first)
	}
}
