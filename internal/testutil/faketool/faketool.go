// Package faketool installs a stand-in for `java -jar closure-compiler.jar`.
//
// The script accepts the compiler's command line, reads the --js file and
// prints it with line breaks and indentation removed. Marker comments in the
// input select other behaviors:
//
//	//@fail  print a parse error to stderr and exit 1
//	//@warn  print a warning to stderr and exit 0
//	//@hang  sleep far longer than any test timeout
package faketool

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	MarkFail = "//@fail"
	MarkWarn = "//@warn"
	MarkHang = "//@hang"
)

const script = `#!/bin/sh
src=""
level=""
while [ $# -gt 0 ]; do
  case "$1" in
    --js) src="$2"; shift 2 ;;
    --compilation_level) level="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ -z "$src" ] || [ ! -f "$src" ]; then
  echo "ERROR - Cannot read: $src" >&2
  exit 2
fi
if grep -q '//@hang' "$src"; then
  exec sleep 30
fi
if grep -q '//@fail' "$src"; then
  echo "$src:1: ERROR - Parse error" >&2
  exit 1
fi
if grep -q '//@warn' "$src"; then
  echo "$src:1: WARNING - level=$level" >&2
fi
grep -v '^[[:space:]]*//' "$src" | sed -e 's/^[[:space:]]*//' -e 's/[[:space:]]*$//' | tr -d '\n'
echo
`

// Paths of an installed fake compiler.
type Paths struct {
	Runtime string
	Jar     string
	Scratch string
}

// Install writes the fake runtime, a placeholder jar and a scratch dir under t.TempDir().
func Install(t *testing.T) Paths {
	t.Helper()
	root := t.TempDir()

	runtime := filepath.Join(root, "fake-java")
	if err := os.WriteFile(runtime, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake runtime: %v", err)
	}
	jar := filepath.Join(root, "closure-compiler.jar")
	if err := os.WriteFile(jar, []byte("fake jar"), 0o644); err != nil {
		t.Fatalf("write fake jar: %v", err)
	}
	scratch := filepath.Join(root, "rdisk")
	if err := os.Mkdir(scratch, 0o755); err != nil {
		t.Fatalf("create scratch dir: %v", err)
	}
	return Paths{Runtime: runtime, Jar: jar, Scratch: scratch}
}
