package reporting

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// FileReporter writes each finding's request and response text to
// <dir>/<hash>.txt, where hash is a collision-safe digest of
// (host, parameter name) - the same hashing shape as the teacher's form
// identifier generator, repurposed to name finding files instead of
// HTML forms.
type FileReporter struct {
	dir string
}

// NewFileReporter builds a FileReporter writing under dir, creating it
// if necessary.
func NewFileReporter(dir string) (*FileReporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileReporter{dir: dir}, nil
}

func (f *FileReporter) Report(_ context.Context, finding Finding) error {
	name := findingFileName(finding.Host, finding.Name)
	path := filepath.Join(f.dir, name)

	content := fmt.Sprintf("# %s (%s)\n\n%s\n\n%s\n", finding.Name, finding.Reason, finding.Request, finding.Response)
	return os.WriteFile(path, []byte(content), 0o644)
}

func findingFileName(host, parameter string) string {
	hash := sha256.Sum256([]byte(host + "|" + parameter))
	return fmt.Sprintf("%x", hash)[:16] + ".txt"
}
