package sandbox

// NamespaceMarker prefixes the line a harness prints with the final
// variables of the program.
const NamespaceMarker = "__CORPUSCRAWL_NAMESPACE__ "

// Language describes how to run code of one language.
type Language struct {
	// Name is the language name, e.g. "python".
	Name string

	// Command is the interpreter and its fixed arguments.
	Command []string

	// Extension is the source file extension including the dot.
	Extension string

	// Harness, when set, is written next to the code and run instead of
	// it. It must read the code from "code"+Extension and print the
	// namespace marker line on success.
	Harness string
}

// pythonHarness executes code.py in a fresh namespace and prints the
// repr of every public top-level name.
const pythonHarness = `import json
import sys
import traceback

with open("code.py", "r", encoding="utf-8") as f:
    source = f.read()

namespace = {"__name__": "__sandbox__"}
try:
    exec(compile(source, "code.py", "exec"), namespace)
except BaseException:
    traceback.print_exc()
    sys.exit(1)

sys.stdout.flush()
public = {k: repr(v) for k, v in namespace.items() if not k.startswith("__")}
print()
print("` + NamespaceMarker + `" + json.dumps(public))
`

// Python runs code with python3 through a namespace-reporting harness.
func Python() Language {
	return Language{
		Name:      "python",
		Command:   []string{"python3", "-I"},
		Extension: ".py",
		Harness:   pythonHarness,
	}
}

// Shell runs code with /bin/sh. There is no harness; a script may print
// the marker line itself.
func Shell() Language {
	return Language{
		Name:      "sh",
		Command:   []string{"/bin/sh"},
		Extension: ".sh",
	}
}
