package bincode

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-spade/spade/internal/filetest"
)

var testUpdateDisasmTests = flag.Bool("test.update-disasm-tests", false, "If set, replace expected disassembly test results with actual results.")

// TestDisassemble drives Disassemble over a set of hand-built Program
// fixtures (stored as JSON, one field per Program/Module/Method, rather
// than a real .spbc file, since nothing in this package itself produces
// source-to-binary output) and diffs the dump against a golden file per
// fixture, mirroring the teacher's source-file/golden-file test shape.
func TestDisassemble(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".json") {
		t.Run(fi.Name(), func(t *testing.T) {
			raw, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			var p Program
			if err := json.Unmarshal(raw, &p); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := Disassemble(&buf, &p); err != nil {
				t.Fatal(err)
			}
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateDisasmTests)
		})
	}
}
