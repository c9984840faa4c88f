package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestTracker(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf)
	tr.Add(2) // before SetTotal: counted, no bar
	tr.SetTotal(10)
	tr.Describe("ncrn.park")
	tr.Add(3)

	if got := tr.Current(); got != 5 {
		t.Errorf("Current() = %d, want 5", got)
	}
	tr.Finish()
	if !strings.Contains(buf.String(), "Loaded 5 of 10 rows") {
		t.Errorf("summary missing from output: %q", buf.String())
	}
}
