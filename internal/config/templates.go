package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the default config file to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

const Template = `# closurectl configuration
runtime = "java"
compiler_jar = "./closure-compiler/closure-compiler-v20170910.jar"
scratch_dir = "/tmp/rdisk"
compilation_level = "ADVANCED"
timeout = "60s"
max_concurrent = 1
fail_on_tool_error = false
artifact_naming = "unique"
extra_flags = []

[server]
id = "closurectl"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
`
