// Package cmd is for command line interactions with the redundans pipeline.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/CristinaFriasLopez/redundans/config"
	"github.com/CristinaFriasLopez/redundans/internal/redundans"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// stderr is for logging to Stderr (without an annoying timestamp)
	stderr = log.New(os.Stderr, "", 0)
)

// rootCmd represents the pipeline when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "redundans",
	Short: "Heterozygous genome assembly pipeline",
	Long: `Heterozygous genome assembly pipeline. It consists of three steps:
reduction, scaffolding and gap closing.

Raw paired libraries are classified by insert size once up front, then each
step hands its assembly to the next: reduction collapses heterozygous contigs,
scaffolding joins contigs per library set (re-estimating insert sizes between
sets), and gap closing fills the remaining gaps. Each step may be skipped, in
which case its output is forwarded from the previous one.`,
	Version: "0.11a",
	RunE:    rootExec,

	// errors are reported by Execute so the elapsed-time line still
	// closes the output on failure
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the pipeline command. It traps Ctrl-C to report partial
// progress and always closes with an elapsed-time line.
func Execute() {
	start := time.Now()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		stderr.Println("\nCtrl-C pressed!")
		stderr.Printf("#Time elapsed: %s", time.Since(start))
		os.Exit(1)
	}()

	err := rootCmd.Execute()
	if err != nil {
		stderr.Printf("[ERROR] %v", err)
	}
	stderr.Printf("#Time elapsed: %s", time.Since(start))
	if err != nil {
		os.Exit(1)
	}
}

func rootExec(cmd *cobra.Command, args []string) error {
	c := config.New()
	if c.Verbose {
		stderr.Printf("Options: %+v", *c)
	}

	if err := preflight(c); err != nil {
		return err
	}

	var diag io.Writer = os.Stderr
	if c.Log != "" {
		f, err := os.Create(c.Log)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %v", c.Log, err)
		}
		defer f.Close()
		diag = f
	}

	return redundans.New(c, diag).Run()
}

// preflight fails fast on missing input files and verifies every
// external tool an enabled stage will invoke before any of them runs.
func preflight(c *config.Config) error {
	for _, fn := range append([]string{c.Fasta}, c.Fastq...) {
		if _, err := os.Stat(fn); err != nil {
			return fmt.Errorf("no such file: %s", fn)
		}
	}

	bins := []string{c.AlignerBin}
	if !c.Reduction.Skip {
		bins = append(bins, c.Reduction.Bin)
	}
	if !c.Scaffolding.Skip {
		bins = append(bins, c.Scaffolding.Bin)
	}
	if !c.GapClosing.Skip {
		if c.GapClosing.Gap2Seq {
			bins = append(bins, c.GapClosing.Gap2SeqBin)
		} else {
			bins = append(bins, c.GapClosing.Bin)
		}
	}

	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("executable not found: %s", bin)
		}
	}
	return nil
}

func init() {
	rootCmd.Flags().StringSliceP("fastq", "i", nil, "FASTQ PE/MP files, forward/reverse pairs")
	rootCmd.Flags().StringP("fasta", "f", "", "assembly FASTA file")
	rootCmd.Flags().StringP("outdir", "o", "redundans", "output directory")
	rootCmd.Flags().IntP("threads", "t", 2, "max threads to run")
	rootCmd.Flags().String("log", "", "output log to file [stderr]")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose")

	rootCmd.Flags().Float64("identity", 0.8, "reduction: min. identity")
	rootCmd.Flags().Float64("overlap", 0.75, "reduction: min. overlap")
	rootCmd.Flags().Int("minLength", 200, "reduction: min. contig length")

	rootCmd.Flags().IntP("joins", "j", 5, "min pairs to join contigs")
	rootCmd.Flags().Float64P("limit", "l", 0.2, "align subset of reads")
	rootCmd.Flags().IntP("mapq", "q", 10, "min mapping quality")
	rootCmd.Flags().Int("iters", 2, "scaffolding iterations per library")
	rootCmd.Flags().String("sspacebin", "SSPACE_Standard_v3.0.pl", "SSPACE path")

	rootCmd.Flags().Bool("gap2seq", false, "close gaps with Gap2Seq instead of GapCloser")

	rootCmd.Flags().Bool("noreduction", false, "skip reduction")
	rootCmd.Flags().Bool("noscaffolding", false, "skip scaffolding")
	rootCmd.Flags().Bool("nogapclosing", false, "skip gap closing")

	rootCmd.MarkFlagRequired("fastq")
	rootCmd.MarkFlagRequired("fasta")

	// Bind the parameters to viper
	viper.BindPFlag("fastq", rootCmd.Flags().Lookup("fastq"))
	viper.BindPFlag("fasta", rootCmd.Flags().Lookup("fasta"))
	viper.BindPFlag("outdir", rootCmd.Flags().Lookup("outdir"))
	viper.BindPFlag("threads", rootCmd.Flags().Lookup("threads"))
	viper.BindPFlag("log", rootCmd.Flags().Lookup("log"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("reduction.identity", rootCmd.Flags().Lookup("identity"))
	viper.BindPFlag("reduction.overlap", rootCmd.Flags().Lookup("overlap"))
	viper.BindPFlag("reduction.minlength", rootCmd.Flags().Lookup("minLength"))
	viper.BindPFlag("reduction.skip", rootCmd.Flags().Lookup("noreduction"))
	viper.BindPFlag("scaffolding.joins", rootCmd.Flags().Lookup("joins"))
	viper.BindPFlag("scaffolding.limit", rootCmd.Flags().Lookup("limit"))
	viper.BindPFlag("scaffolding.mapq", rootCmd.Flags().Lookup("mapq"))
	viper.BindPFlag("scaffolding.iters", rootCmd.Flags().Lookup("iters"))
	viper.BindPFlag("scaffolding.bin", rootCmd.Flags().Lookup("sspacebin"))
	viper.BindPFlag("scaffolding.skip", rootCmd.Flags().Lookup("noscaffolding"))
	viper.BindPFlag("gapclosing.gap2seq", rootCmd.Flags().Lookup("gap2seq"))
	viper.BindPFlag("gapclosing.skip", rootCmd.Flags().Lookup("nogapclosing"))
}
