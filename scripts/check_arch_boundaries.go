package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// allowed lists, per source package, the internal packages it may import.
// "cmd" covers every binary under cmd/.
var allowed = map[string]map[string]bool{
	"cmd": {
		"cli": true,
	},
	"cli": {
		"archive":   true,
		"config":    true,
		"discovery": true,
		"logger":    true,
		"metrics":   true,
		"model":     true,
		"runstore":  true,
		"upstream":  true,
		"yutto":     true,
	},
	"metrics": {
		"archive": true,
		"model":   true,
	},
	"archive": {
		"discovery": true,
		"model":     true,
		"runstore":  true,
		"yutto":     true,
	},
	"discovery": {
		"config":   true,
		"model":    true,
		"runstore": true,
		"upstream": true,
		"yutto":    true,
	},
	"upstream": {},
	"yutto": {
		"model": true,
	},
	"runstore": {
		"model": true,
	},
	"config": {},
	"logger": {},
	"model":  {},
}

func main() {
	violations := []string{}

	for _, root := range []string{"cmd", "internal"} {
		found, err := checkTree(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}

	fmt.Println("architecture boundary check: OK")
}

func checkTree(root string) ([]string, error) {
	violations := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		allowMap, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: unknown source package %q", path, srcPkg))
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}

		for _, imp := range file.Imports {
			impPath := strings.Trim(imp.Path.Value, "\"")
			tgtPkg, ok := targetPackage(impPath)
			if !ok {
				continue
			}
			if tgtPkg == srcPkg {
				continue
			}
			if !allowMap[tgtPkg] {
				violations = append(violations, fmt.Sprintf("%s: %s -> %s is forbidden", path, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	return violations, err
}

func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case "cmd":
		return "cmd"
	case "internal":
		return parts[1]
	default:
		return ""
	}
}

func targetPackage(importPath string) (string, bool) {
	const prefix = "creator-archiver/internal/"
	if !strings.HasPrefix(importPath, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(importPath, prefix)
	if rest == "" {
		return "", false
	}
	parts := strings.Split(rest, "/")
	return parts[0], true
}
