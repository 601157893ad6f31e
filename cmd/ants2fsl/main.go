package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ants2fsl/pkg/config"
	"ants2fsl/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Optional YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to the given path and exit")
	keepScratch := flag.Bool("keep-scratch", false, "Keep the scratch directory after a successful run")
	quiet := flag.Bool("quiet", false, "Suppress per-step progress output")
	flag.Usage = usage
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate positional arguments
	args := flag.Args()
	if len(args) != 4 {
		fmt.Fprintf(os.Stderr, "Error: expected 4 arguments, got %d\n\n", len(args))
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *keepScratch {
		cfg.Pipeline.KeepScratch = true
	}
	if *quiet {
		cfg.Pipeline.Verbose = false
	}

	if cfg.Pipeline.Verbose {
		fmt.Println("================================")
		fmt.Println("ANTS COMPOSITE TRANSFORM TO FSL DISPLACEMENT FIELD CONVERTER")
		fmt.Println("================================")
	}

	// Initialize pipeline parameters
	params := &pipeline.Params{
		TransformPath: args[0],
		T1wPath:       args[1],
		MNIPath:       args[2],
		DirectionFlag: args[3],
		Config:        cfg,
	}

	// Create pipeline instance
	p := pipeline.NewPipeline(params)

	// Run the conversion pipeline
	startTime := time.Now()
	if err := p.Run(context.Background()); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nConversion completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output FSL transform saved to: %s\n", p.OutputPath())
}

// usage prints the expected command-line surface.
func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <ants_transform_h5> <t1w_image> <mni_image> <native|mni>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Arguments:")
	fmt.Fprintln(os.Stderr, "  ants_transform_h5   ANTs composite transform (HDF5)")
	fmt.Fprintln(os.Stderr, "  t1w_image           T1-weighted image defining native space")
	fmt.Fprintln(os.Stderr, "  mni_image           MNI template image defining standard space")
	fmt.Fprintln(os.Stderr, "  native|mni          Conversion direction flag")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}
