package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"creator-archiver/internal/config"
	"creator-archiver/internal/discovery"
)

func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	configPath := fs.String("config", config.FileName+"."+config.FileType, "config file to create")
	outputDir := fs.String("output-dir", "~/Downloads", "root output directory to create")
	binary := fs.String("binary", "", "download tool to check (default: yutto)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := discovery.InitWorkspace(discovery.InitWorkspaceOptions{
		ConfigPath: strings.TrimSpace(*configPath),
		OutputDir:  config.ExpandHome(*outputDir),
		Binary:     strings.TrimSpace(*binary),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Println("workspace initialized")
	fmt.Printf("config: %s\n", res.ConfigPath)
	fmt.Printf("output_dir: %s\n", res.OutputDir)
	fmt.Printf("created_config: %t\n", res.CreatedConfig)
	fmt.Printf("created_output_dir: %t\n", res.CreatedOutputDir)
	fmt.Println("checks:")
	printChecks("  ", res.DoctorResult)
	if !res.DoctorResult.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Printf("next: set basic.uid in %s, then creator-archiver run\n", res.ConfigPath)
	return nil
}

func runDoctor(_ context.Context, args []string) error {
	fs, common := newCommandFlags("doctor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{Path: strings.TrimSpace(*common.configPath), Flags: fs})
	if err != nil {
		return err
	}
	res, err := discovery.Doctor(discovery.DoctorOptions{
		Binary:     cfg.Download.Binary,
		OutputDir:  cfg.Basic.OutputDir,
		ConfigFile: cfg.File,
	})
	if err != nil {
		return err
	}
	if *common.jsonOut {
		return printJSON(res)
	}

	printChecks("", res)
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func printChecks(indent string, res discovery.DoctorResult) {
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s%s: %s (%s)\n", indent, c.Name, status, c.Message)
	}
}
