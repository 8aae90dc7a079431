package instance

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Canonical artifact filenames inside an instance directory.
const (
	serverJar    = "server.jar"
	installerJar = "installer.jar"
	launcherJar  = "launcher.jar"
	launchScript = "start.sh"
)

// distribution is the closed set of layout behaviors selected by a type
// code. Each family knows where its artifact lands and how to finish the
// directory once the download is verified.
type distribution interface {
	// artifactName is the filename the download is written to, relative
	// to the instance directory.
	artifactName() string

	// finalize lays out license markers, aliases and launch scripts, and
	// returns the command that starts the instance.
	finalize(dir, minRAM, maxRAM string) ([]string, error)
}

// distributionFor picks the layout family for a type code. Unknown codes
// are treated as direct-jar, the most common shape.
func distributionFor(typeCode string) distribution {
	switch strings.ToLower(strings.TrimSpace(typeCode)) {
	case "forge", "neoforge":
		return installerDist{}
	case "fabric", "quilt":
		return launcherDist{}
	default:
		// vanilla, paper, purpur, folia and friends ship a runnable jar.
		return directJarDist{}
	}
}

// directJarDist covers distributions whose download is itself the server.
type directJarDist struct{}

func (directJarDist) artifactName() string { return serverJar }

func (directJarDist) finalize(dir, minRAM, maxRAM string) ([]string, error) {
	if err := writeEula(dir); err != nil {
		return nil, err
	}
	return javaCommand(serverJar, minRAM, maxRAM), nil
}

// installerDist covers distributions that need a separate install step
// before a runnable server exists. The installer is placed and the license
// accepted; running the installer is an external concern.
type installerDist struct{}

func (installerDist) artifactName() string { return installerJar }

func (installerDist) finalize(dir, minRAM, maxRAM string) ([]string, error) {
	if err := writeEula(dir); err != nil {
		return nil, err
	}
	// The install step produces server.jar; the launch command targets it.
	return javaCommand(serverJar, minRAM, maxRAM), nil
}

// launcherDist covers distributions whose artifact is a directly runnable
// launcher. Tooling that expects the generic jar name gets an alias copy,
// and a small shell script becomes the entry point.
type launcherDist struct{}

func (launcherDist) artifactName() string { return launcherJar }

func (launcherDist) finalize(dir, minRAM, maxRAM string) ([]string, error) {
	if err := writeEula(dir); err != nil {
		return nil, err
	}

	if err := copyFile(filepath.Join(dir, launcherJar), filepath.Join(dir, serverJar)); err != nil {
		return nil, fmt.Errorf("failed to create launcher alias: %w", err)
	}

	script := fmt.Sprintf("#!/bin/sh\nexec java -Xms%s -Xmx%s -jar %s nogui\n", minRAM, maxRAM, launcherJar)
	scriptPath := filepath.Join(dir, launchScript)
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		return nil, fmt.Errorf("failed to write launch script: %w", err)
	}

	return []string{"sh", launchScript}, nil
}

func javaCommand(jar, minRAM, maxRAM string) []string {
	return []string{
		"java",
		fmt.Sprintf("-Xms%s", minRAM),
		fmt.Sprintf("-Xmx%s", maxRAM),
		"-jar", jar,
		"nogui",
	}
}

func writeEula(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, EulaFile), []byte("eula=true\n"), 0644); err != nil {
		return fmt.Errorf("failed to write eula marker: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
