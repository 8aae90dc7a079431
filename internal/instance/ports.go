package instance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const portKey = "server-port"

// rewritePort sets server-port in the instance's properties file,
// replacing an existing assignment or appending one. The rewrite is
// idempotent; everything else in the file is preserved verbatim.
func rewritePort(dir string, port int) error {
	path := filepath.Join(dir, PropertiesFile)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", PropertiesFile, err)
	}

	assignment := fmt.Sprintf("%s=%d", portKey, port)

	lines := []string{}
	if len(data) > 0 {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	replaced := false
	for i, line := range lines {
		key := strings.TrimSpace(strings.SplitN(line, "=", 2)[0])
		if key == portKey {
			lines[i] = assignment
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, assignment)
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", PropertiesFile, err)
	}
	return nil
}
