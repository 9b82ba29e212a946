package discovery

import (
	"os"
	"os/exec"
	"strings"

	"creator-archiver/internal/config"
	"creator-archiver/internal/runstore"
	"creator-archiver/internal/yutto"
)

type DoctorOptions struct {
	Binary     string
	OutputDir  string
	ConfigFile string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitWorkspaceOptions struct {
	ConfigPath string
	OutputDir  string
	Binary     string
}

type InitWorkspaceResult struct {
	ConfigPath       string       `json:"config_path"`
	OutputDir        string       `json:"output_dir"`
	CreatedConfig    bool         `json:"created_config"`
	CreatedOutputDir bool         `json:"created_output_dir"`
	DoctorResult     DoctorResult `json:"doctor"`
}

// Doctor checks that the download tool and ffmpeg are installed and that the
// output directory is writable. A missing config file is reported but does
// not fail the check; defaults and env still apply.
func Doctor(opts DoctorOptions) (DoctorResult, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = yutto.DefaultBinary
	}

	checks := make([]DoctorCheck, 0, 4)
	toolPath, toolErr := yutto.CheckDependency(binary)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:" + binary,
		OK:      toolErr == nil,
		Message: dependencyMessage(toolErr == nil, toolPath, binary),
	})

	ffmpegPath, ffmpegErr := exec.LookPath("ffmpeg")
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      ffmpegErr == nil,
		Message: dependencyMessage(ffmpegErr == nil, ffmpegPath, "ffmpeg"),
	})

	outOK, outMessage := ensureWritableDir(opts.OutputDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:output",
		OK:      outOK,
		Message: outMessage,
	})

	cfgMessage := "no config file found; using defaults and environment"
	if strings.TrimSpace(opts.ConfigFile) != "" {
		cfgMessage = "using " + opts.ConfigFile
	}
	checks = append(checks, DoctorCheck{
		Name:    "config",
		OK:      true,
		Message: cfgMessage,
	})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}

	return DoctorResult{OK: ok, Checks: checks}, nil
}

// InitWorkspace writes a config template when none exists, creates the
// output directory and runs Doctor against the result.
func InitWorkspace(opts InitWorkspaceOptions) (InitWorkspaceResult, error) {
	outputDir := strings.TrimSpace(opts.OutputDir)

	createdOutputDir := false
	if outputDir != "" {
		if _, err := os.Stat(outputDir); os.IsNotExist(err) {
			createdOutputDir = true
		}
		if err := runstore.Mkdir(outputDir); err != nil {
			return InitWorkspaceResult{}, err
		}
	}

	createdConfig, err := config.WriteTemplate(opts.ConfigPath)
	if err != nil {
		return InitWorkspaceResult{}, err
	}

	doc, err := Doctor(DoctorOptions{Binary: opts.Binary, OutputDir: outputDir, ConfigFile: opts.ConfigPath})
	if err != nil {
		return InitWorkspaceResult{}, err
	}

	return InitWorkspaceResult{
		ConfigPath:       opts.ConfigPath,
		OutputDir:        outputDir,
		CreatedConfig:    createdConfig,
		CreatedOutputDir: createdOutputDir,
		DoctorResult:     doc,
	}, nil
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, ".archiver-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
