package redundans

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFasta(t *testing.T, name string, seqs map[string]string) string {
	t.Helper()

	var b strings.Builder
	// deterministic order for readable failures
	for _, id := range []string{"c1", "c2", "c3"} {
		if seq, ok := seqs[id]; ok {
			b.WriteString(">" + id + "\n" + seq + "\n")
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_fastaStats(t *testing.T) {
	path := writeFasta(t, "asm.fa", map[string]string{
		"c1": strings.Repeat("AT", 600), // 1200 bp, no GC
		"c2": strings.Repeat("GC", 400), // 800 bp, all GC
		"c3": "ACGTNNNN",                // 8 bp, half Ns
	})

	s, err := fastaStats(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.Contigs != 3 {
		t.Errorf("contigs = %d, want 3", s.Contigs)
	}
	if s.Bases != 2008 {
		t.Errorf("bases = %d, want 2008", s.Bases)
	}
	if s.Ns != 4 {
		t.Errorf("Ns = %d, want 4", s.Ns)
	}
	// GC over called bases: (800+2) / 2004
	wantGC := 100 * float64(802) / float64(2004)
	if s.GC < wantGC-0.01 || s.GC > wantGC+0.01 {
		t.Errorf("GC = %.2f, want %.2f", s.GC, wantGC)
	}
	if s.ContigsOver != 1 || s.BasesOver != 1200 {
		t.Errorf(">1kb = %d contigs / %d bases, want 1 / 1200", s.ContigsOver, s.BasesOver)
	}
	if s.Longest != 1200 {
		t.Errorf("longest = %d, want 1200", s.Longest)
	}
	if s.N50 != 1200 {
		t.Errorf("N50 = %d, want 1200", s.N50)
	}
	if s.N90 != 800 {
		t.Errorf("N90 = %d, want 800", s.N90)
	}

	line := s.TabLine()
	if !strings.HasPrefix(line, path+"\t3\t2008\t") {
		t.Errorf("unexpected report line: %q", line)
	}
	if len(strings.Split(line, "\t")) != len(strings.Split(statsHeader, "\t")) {
		t.Errorf("report line and header column counts differ: %q", line)
	}
}

func Test_fastaStats_empty(t *testing.T) {
	path := writeFasta(t, "empty.fa", map[string]string{})

	s, err := fastaStats(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Contigs != 0 || s.Bases != 0 || s.N50 != 0 {
		t.Errorf("expected zeroed stats for an empty file, got %+v", s)
	}
}

func Test_nStat(t *testing.T) {
	tests := []struct {
		name   string
		sorted []int
		total  int
		frac   float64
		want   int
	}{
		{"n50 mid crossing", []int{1200, 800}, 2000, 0.5, 1200},
		{"n90 last contig", []int{1200, 800}, 2000, 0.9, 800},
		{"single contig", []int{500}, 500, 0.5, 500},
		{"empty", nil, 0, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nStat(tt.sorted, tt.total, tt.frac); got != tt.want {
				t.Errorf("nStat = %d, want %d", got, tt.want)
			}
		})
	}
}
