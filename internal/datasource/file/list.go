package file

import (
	"bufio"
	"os"
	"strings"
)

// ReadList reads a text file and returns its non-empty lines, skipping lines
// that start with '#' after trimming. The CLI uses it for --jobs-from files
// that list one job path per line.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
