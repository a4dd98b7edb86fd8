package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"dvfcomposer/pkg/composer"
	"dvfcomposer/pkg/config"
	"dvfcomposer/pkg/metrics"
	"dvfcomposer/pkg/nifti"
	"dvfcomposer/pkg/visualization"
)

func main() {
	configPath := flag.String("config", "dvfcomposer.yaml", "YAML configuration file (defaults are used if it does not exist)")
	apPath := flag.String("ap", "", "AP (chest) motion model component")
	siPath := flag.String("si", "", "SI (diaphragm) motion model component")
	offsetPath := flag.String("offset", "", "Offset motion model component")
	outPath := flag.String("out", "", "Output DVF file (.nii or .nii.gz)")
	apVal := flag.Float64("apval", 0, "AP surrogate value")
	siVal := flag.Float64("sival", 0, "SI surrogate value")
	copyHeader := flag.Bool("copy-header", true, "Copy the AP component's header metadata to the output")
	dataType := flag.String("datatype", "", "Output voxel type: float32 or float64 (default: AP component's float type, else float32)")
	summary := flag.Bool("summary", false, "Print displacement statistics of the composed DVF")
	previewDir := flag.String("preview-dir", "", "Directory to save JPEG preview slices of each component")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this path and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags given on the command line override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ap":
			cfg.Components.AP = *apPath
		case "si":
			cfg.Components.SI = *siPath
		case "offset":
			cfg.Components.Offset = *offsetPath
		case "out":
			cfg.Output.Path = *outPath
		case "apval":
			cfg.Surrogates.AP = *apVal
		case "sival":
			cfg.Surrogates.SI = *siVal
		case "copy-header":
			cfg.Output.CopyHeader = *copyHeader
		case "datatype":
			cfg.Output.DataType = *dataType
		case "summary":
			cfg.Output.Summary = *summary
		case "preview-dir":
			cfg.Output.PreviewDir = *previewDir
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to: %s\n", *writeConfig)
		return
	}

	if cfg.Output.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	fmt.Println("================================")
	fmt.Println("DVF COMPOSER: LINEAR SURROGATE-DRIVEN MOTION MODEL")
	fmt.Println("================================")

	startTime := time.Now()
	if err := run(cfg); err != nil {
		log.Fatalf("DVF composition failed: %v", err)
	}
	fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(startTime).Seconds())
}

// run loads the model, composes the DVF for the configured surrogate values
// and writes it, followed by the optional summary and previews.
func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// An empty datatype keeps the AP component's float type
	codec := &nifti.Codec{}
	if cfg.Output.DataType != "" {
		dt, err := nifti.ParseDataType(cfg.Output.DataType)
		if err != nil {
			return err
		}
		if !dt.IsFloat() {
			return fmt.Errorf("output datatype must be float32 or float64, got %s", dt)
		}
		codec.OutputType = dt
	}

	opts := composer.DefaultOptions()
	opts.CopyHeader = cfg.Output.CopyHeader
	opts.AffineTolerance = cfg.Validation.AffineTolerance

	fmt.Println("Step 1: Loading motion model components...")
	fmt.Printf("- AP:     %s\n", cfg.Components.AP)
	fmt.Printf("- SI:     %s\n", cfg.Components.SI)
	fmt.Printf("- Offset: %s\n", cfg.Components.Offset)
	dvfComposer, err := composer.Load(codec, composer.Paths{
		AP:     cfg.Components.AP,
		SI:     cfg.Components.SI,
		Offset: cfg.Components.Offset,
	}, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Step 2: Composing DVF for surrogate values AP=%g, SI=%g...\n", cfg.Surrogates.AP, cfg.Surrogates.SI)
	dvf, err := dvfComposer.ComposeToFile(cfg.Surrogates.AP, cfg.Surrogates.SI, cfg.Output.Path, codec)
	if err != nil {
		return err
	}
	fmt.Printf("Output DVF saved to: %s\n", cfg.Output.Path)

	if cfg.Output.Summary {
		s, err := metrics.Summarize(dvf)
		if err != nil {
			return fmt.Errorf("failed to summarize DVF: %w", err)
		}
		printSummary(s)
	}

	if cfg.Output.PreviewDir != "" {
		fmt.Println("\nSaving preview slices...")
		for c := 0; c < dvf.Components(); c++ {
			viewer, err := visualization.NewViewer(dvf, c)
			if err != nil {
				return err
			}
			dir := filepath.Join(cfg.Output.PreviewDir, fmt.Sprintf("component_%d", c))
			if err := viewer.SaveSliceSequence("z", dir); err != nil {
				log.Printf("Warning: Failed to save previews of component %d: %v", c, err)
				continue
			}
			fmt.Printf("- component %d: %s\n", c, dir)
		}
	}

	return nil
}

func printSummary(s metrics.Summary) {
	fmt.Printf("\nDVF Summary:\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("Voxels: %d, components per voxel: %d\n", s.NumVoxels, s.Components)
	for c := range s.ComponentMean {
		fmt.Printf("Component %d: mean %.4f, std %.4f\n", c, s.ComponentMean[c], s.ComponentStdDev[c])
	}
	fmt.Printf("Mean displacement magnitude: %.4f\n", s.MeanMagnitude)
	fmt.Printf("Max displacement magnitude:  %.4f\n", s.MaxMagnitude)
	fmt.Printf("RMS displacement magnitude:  %.4f\n", s.RMSMagnitude)
}
