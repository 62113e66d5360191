package redundans

import (
	"io"
	"log"
	"strings"
	"time"

	"github.com/CristinaFriasLopez/redundans/config"
)

// Pipeline is the stage controller. It owns the run directory, the
// current library classification, and the chain of canonical
// artifacts, and advances through the stages in fixed order:
//
//	init -> reduced -> scaffolded -> gap closed -> reported
//
// Every stage but init and reported may be skipped, in which case its
// canonical artifact is forwarded from the previous stage by
// reference. Any stage failure terminates the run; partial output is
// left in the run directory for inspection.
type Pipeline struct {
	cfg        *config.Config
	diag       *log.Logger
	classifier *Classifier

	dir       *RunDir
	limit     int
	libraries []LibrarySet

	contigs   Artifact
	reduced   Artifact
	scaffolds Artifact
	filled    Artifact

	// intermediate round outputs in the order they were produced
	scaffoldRounds []string
	gapRounds      []string
}

// New builds a pipeline around cfg, writing all diagnostics to diag.
func New(cfg *config.Config, diag io.Writer) *Pipeline {
	logger := log.New(diag, "", 0)
	return &Pipeline{
		cfg:  cfg,
		diag: logger,
		classifier: &Classifier{
			Estimator:       &AlignerEstimator{Bin: cfg.AlignerBin, Diag: logger},
			MajorityFrac:    cfg.OrientationMajority,
			VariabilityFrac: cfg.VariabilityWarn,
			Diag:            logger,
		},
	}
}

// SetEstimator overrides the insert-size collaborator. for testing.
func (p *Pipeline) SetEstimator(e InsertSizeEstimator) {
	p.classifier.Estimator = e
}

// Run drives the pipeline to completion. The first failing stage
// terminates the run; no cleanup or recovery is attempted.
func (p *Pipeline) Run() error {
	for _, stage := range []func() error{
		p.initRun,
		p.reduce,
		p.scaffold,
		p.closeGaps,
		p.report,
	} {
		if err := stage(); err != nil {
			return err
		}
	}
	return nil
}

// initRun creates the run directory (failing fast when it pre-exists),
// links the input assembly as the canonical contigs artifact, derives
// the read-alignment cap and classifies the libraries against it.
func (p *Pipeline) initRun() error {
	dir, err := NewRunDir(p.cfg.OutDir)
	if err != nil {
		return err
	}
	p.dir = dir

	if p.contigs, err = NewArtifact(p.cfg.Fasta).Forward(dir.Join("contigs.fa")); err != nil {
		return err
	}

	// cap aligned reads at a fraction of the assembly size
	if p.cfg.Scaffolding.Limit > 0 {
		stats, err := fastaStats(p.contigs.Resolve())
		if err != nil {
			return err
		}
		p.limit = int(p.cfg.Scaffolding.Limit * float64(stats.Bases))
		if p.cfg.Verbose {
			p.diag.Printf(" Aligning %d mates per library...", p.limit)
		}
	}

	p.libraries, err = p.classifier.Classify(p.cfg.Fastq, p.contigs.Resolve(),
		p.cfg.Scaffolding.MapQ, p.cfg.Threads, p.limit)
	return err
}

func (p *Pipeline) reduce() error {
	out := p.dir.Join("contigs.reduced.fa")

	var err error
	if p.cfg.Reduction.Skip {
		p.reduced, err = p.contigs.Forward(out)
		return err
	}

	p.banner("Reduction...")
	if p.cfg.Verbose {
		p.diag.Print(reductionHeader)
	}

	r := &reducer{
		bin:       p.cfg.Reduction.Bin,
		identity:  p.cfg.Reduction.Identity,
		overlap:   p.cfg.Reduction.Overlap,
		minLength: p.cfg.Reduction.MinLength,
		diag:      p.diag,
	}
	p.reduced, err = r.run(p.dir, p.contigs, out, p.libraries, p.limit)
	return err
}

func (p *Pipeline) scaffold() error {
	out := p.dir.Join("scaffolds.fa")

	var err error
	if p.cfg.Scaffolding.Skip {
		p.scaffolds, err = p.reduced.Forward(out)
		return err
	}

	p.banner("Scaffolding...")

	s := &scaffolder{
		bin:        p.cfg.Scaffolding.Bin,
		dir:        p.dir,
		fastq:      p.cfg.Fastq,
		threads:    p.cfg.Threads,
		joins:      p.cfg.Scaffolding.Joins,
		limit:      p.limit,
		mapq:       p.cfg.Scaffolding.MapQ,
		iters:      p.cfg.Scaffolding.Iters,
		classifier: p.classifier,
		diag:       p.diag,
		verbose:    p.cfg.Verbose,
	}
	final, refreshed, err := s.run(p.reduced, p.libraries)
	if err != nil {
		return err
	}

	// insert sizes drift as contigs merge; downstream stages use the
	// refreshed classification
	p.libraries = refreshed
	p.scaffoldRounds = s.produced
	p.scaffolds, err = final.Forward(out)
	return err
}

// closeGaps runs the gap filler unless the stage is disabled or the
// refreshed classification came back empty (gap closing is pointless
// without usable libraries).
func (p *Pipeline) closeGaps() error {
	out := p.dir.Join("scaffolds.filled.fa")

	var err error
	if p.cfg.GapClosing.Skip || len(p.libraries) == 0 {
		p.filled, err = p.scaffolds.Forward(out)
		return err
	}

	p.banner("Gap closing...")

	g := &gapCloser{
		dir:        p.dir,
		bin:        p.cfg.GapClosing.Bin,
		gap2seqBin: p.cfg.GapClosing.Gap2SeqBin,
		useGap2Seq: p.cfg.GapClosing.Gap2Seq,
		threads:    p.cfg.Threads,
		overlap:    p.cfg.GapClosing.Overlap,
		minReadLen: p.cfg.GapClosing.MinReadLen,
		maxReadLen: p.cfg.GapClosing.MaxReadLen,
		iters:      p.cfg.Scaffolding.Iters,
		mapq:       p.cfg.Scaffolding.MapQ,
		limit:      p.limit,
		diag:       p.diag,
		verbose:    p.cfg.Verbose,
	}
	final, err := g.run(p.scaffolds, p.libraries)
	if err != nil {
		return err
	}
	p.gapRounds = g.produced
	p.filled, err = final.Forward(out)
	return err
}

// report summarizes every artifact produced along the way, in creation
// order: the original contigs, the reduced assembly, each scaffolding
// round, the final scaffolds, each gap-closing round and the final
// gap-filled assembly.
func (p *Pipeline) report() error {
	p.banner("Reporting statistics...")
	p.diag.Print(statsHeader)

	files := []string{p.contigs.Resolve(), p.reduced.Resolve()}
	files = append(files, p.scaffoldRounds...)
	files = append(files, p.scaffolds.Resolve())
	files = append(files, p.gapRounds...)
	files = append(files, p.filled.Resolve())

	for _, fn := range files {
		stats, err := fastaStats(fn)
		if err != nil {
			return err
		}
		p.diag.Print(stats.TabLine())
	}
	return nil
}

// banner writes a timestamped section separator between major stages.
func (p *Pipeline) banner(msg string) {
	if !p.cfg.Verbose {
		return
	}
	p.diag.Printf("\n%s\n[%s] %s", strings.Repeat("#", 50), time.Now().Format(time.ANSIC), msg)
}
