package normalize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Idempotent(t *testing.T) {
	inputs := []string{
		"ModuleNotFoundError: No module named 'requests' in /home/alice/project/main.py line 3",
		"NullPointerException at com.example.Foo(Foo.java:42)",
		"error in C:\\Users\\Bob\\dev\\app\\index.js at line 17, column 4",
		"panic: runtime error: index out of range [5] with length 3",
		"contact admin@example.com if this persists",
		"",
	}
	for _, in := range inputs {
		once := Message(in)
		assert.Equal(t, once, Message(once), "input: %q", in)
	}
}

func TestMessage_PathAndLineInvariance(t *testing.T) {
	template := "SyntaxError: unexpected token in %s at line %d column %d"

	a := Message(fmt.Sprintf(template, "/home/alice/src/app/server.py", 12, 8))
	b := Message(fmt.Sprintf(template, "/Users/bob/work/other/thing.py", 947, 1))
	c := Message(fmt.Sprintf(template, "C:\\Users\\carol\\proj\\x.py", 3, 77))

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestMessage_StripsPersonalIdentifiers(t *testing.T) {
	out := Message("permission denied for /home/jsmith/secrets.txt, mail jsmith@corp.example.com")
	assert.NotContains(t, out, "jsmith")
	assert.NotContains(t, out, "corp.example.com")
	assert.Contains(t, out, "<path>")
	assert.Contains(t, out, "<email>")
}

func TestMessage_LowercasesAndCollapsesWhitespace(t *testing.T) {
	out := Message("  Unexpected   ERROR\n\toccurred  ")
	assert.Equal(t, "unexpected error occurred", out)
}

func TestSignature_Deterministic(t *testing.T) {
	raw := "ModuleNotFoundError: No module named 'requests'"
	assert.Equal(t, Signature("import_error", raw), Signature("import_error", raw))
}

func TestSignature_IgnoresMachineSpecifics(t *testing.T) {
	a := Signature("import_error", "No module named 'requests' (/home/alice/app/main.py, line 3)")
	b := Signature("import_error", "No module named 'requests' (/Users/bob/svc/entry.py, line 210)")
	assert.Equal(t, a, b)
}

func TestSignature_DifferentErrorsDiffer(t *testing.T) {
	a := Signature("import_error", "No module named 'requests'")
	b := Signature("import_error", "No module named 'numpy'")
	assert.NotEqual(t, a, b)
}

func TestSignature_Shape(t *testing.T) {
	sig := Signature("Runtime Error!", "division by zero")
	parts := strings.Split(sig, ":")
	assert.Len(t, parts, 3)
	assert.Equal(t, "runtime_error", parts[0])
	assert.Equal(t, "division_zero", parts[1])
	assert.Len(t, parts[2], 12)
}

func TestSignature_EmptyCategory(t *testing.T) {
	sig := Signature("", "something broke")
	assert.True(t, strings.HasPrefix(sig, "uncategorized:"))
}
