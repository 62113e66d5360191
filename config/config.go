// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"log"

	"github.com/spf13/viper"
)

// ReductionConfig is settings for the heterozygous-contig reduction step.
type ReductionConfig struct {
	// min sequence identity between contigs for one to be called redundant
	Identity float64 `mapstructure:"identity"`

	// min fraction of the shorter contig that the overlap must cover
	Overlap float64 `mapstructure:"overlap"`

	// contigs shorter than this are dropped outright
	MinLength int `mapstructure:"minlength"`

	// path to the reduction executable
	Bin string `mapstructure:"bin"`

	// skip the reduction step, forwarding contigs unchanged
	Skip bool `mapstructure:"skip"`
}

// ScaffoldingConfig is settings for the scaffolding step.
type ScaffoldingConfig struct {
	// min read pairs needed to join two contigs
	Joins int `mapstructure:"joins"`

	// align only this fraction of reads, relative to assembly size (0 = all)
	Limit float64 `mapstructure:"limit"`

	// min mapping quality for a pair to count toward insert-size stats
	MapQ int `mapstructure:"mapq"`

	// scaffolding iterations per library set
	Iters int `mapstructure:"iters"`

	// path to the SSPACE executable
	Bin string `mapstructure:"bin"`

	// skip the scaffolding step
	Skip bool `mapstructure:"skip"`
}

// GapClosingConfig is settings for the gap closing step.
type GapClosingConfig struct {
	// min overlap used by GapCloser when extending into a gap
	Overlap int `mapstructure:"overlap"`

	// read length window for the filtered FASTQ fed to the gap closer
	MinReadLen int `mapstructure:"minreadlen"`
	MaxReadLen int `mapstructure:"maxreadlen"`

	// use Gap2Seq instead of GapCloser
	Gap2Seq bool `mapstructure:"gap2seq"`

	// paths to the two supported gap-closing executables
	Bin        string `mapstructure:"bin"`
	Gap2SeqBin string `mapstructure:"gap2seqbin"`

	// skip the gap closing step
	Skip bool `mapstructure:"skip"`
}

// Config is the root-level settings struct and is a mix of settings
// available in a settings file and those from the command line.
type Config struct {
	// FASTQ PE/MP files, forward/reverse interleaved by pairs
	Fastq []string `mapstructure:"fastq"`

	// draft assembly FASTA file
	Fasta string `mapstructure:"fasta"`

	// output directory, must not pre-exist
	OutDir string `mapstructure:"outdir"`

	// max threads passed through to every external tool
	Threads int `mapstructure:"threads"`

	// optional log file, stderr when empty
	Log string `mapstructure:"log"`

	Verbose bool `mapstructure:"verbose"`

	// path to the read aligner used for insert-size estimation
	AlignerBin string `mapstructure:"alignerbin"`

	// a library's major orientation below this fraction of pairs is flagged
	OrientationMajority float64 `mapstructure:"orientation-majority"`

	// a library's stddev/mean insert ratio above this is flagged
	VariabilityWarn float64 `mapstructure:"variability-warn"`

	Reduction   ReductionConfig   `mapstructure:"reduction"`
	Scaffolding ScaffoldingConfig `mapstructure:"scaffolding"`
	GapClosing  GapClosingConfig  `mapstructure:"gapclosing"`
}

// SetDefaults registers every setting's default value with Viper.
// Command line flags bound by /cmd override these.
func SetDefaults() {
	viper.SetDefault("outdir", "redundans")
	viper.SetDefault("threads", 2)
	viper.SetDefault("alignerbin", "bwa")
	viper.SetDefault("orientation-majority", 0.90)
	viper.SetDefault("variability-warn", 0.66)

	viper.SetDefault("reduction.identity", 0.8)
	viper.SetDefault("reduction.overlap", 0.75)
	viper.SetDefault("reduction.minlength", 200)
	viper.SetDefault("reduction.bin", "fasta2homozygous")

	viper.SetDefault("scaffolding.joins", 5)
	viper.SetDefault("scaffolding.limit", 0.2)
	viper.SetDefault("scaffolding.mapq", 10)
	viper.SetDefault("scaffolding.iters", 2)
	viper.SetDefault("scaffolding.bin", "SSPACE_Standard_v3.0.pl")

	viper.SetDefault("gapclosing.overlap", 25)
	viper.SetDefault("gapclosing.minreadlen", 40)
	viper.SetDefault("gapclosing.maxreadlen", 150)
	viper.SetDefault("gapclosing.bin", "GapCloser")
	viper.SetDefault("gapclosing.gap2seqbin", "Gap2Seq")
}

// New returns a new Config struct populated by Viper settings
// (either from a settings file and/or command line arguments).
func New() *Config {
	SetDefaults()

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		log.Fatalf("unable to decode settings into struct, %v", err)
	}

	return &c
}
