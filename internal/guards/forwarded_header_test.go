package guards

import (
	"os"
	"strings"
	"testing"
)

// Client addresses come from realip only, so logs and rate limits agree on
// which proxies are trusted.
func TestNoDirectForwardedHeaderParsing(t *testing.T) {
	forbidden := []string{"X-Forwarded-For", "X-Real-IP"}
	allowed := "internal/platform/http/realip/"

	root := findRepoRoot(t)
	var violations []string
	walkGoFiles(t, root, "internal", func(path, rel string) {
		if strings.HasPrefix(rel, allowed) {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		content := string(data)
		for _, header := range forbidden {
			if i := strings.Index(content, header); i >= 0 {
				line := 1 + strings.Count(content[:i], "\n")
				violations = append(violations, rel+":"+itoa(line)+": "+header)
			}
		}
	})
	if len(violations) > 0 {
		t.Fatalf("forwarding headers read outside realip:\n%s", strings.Join(violations, "\n"))
	}
}
