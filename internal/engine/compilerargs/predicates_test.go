package compilerargs

import (
	"strings"
	"testing"
)

func TestIsCompilerInvocation(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"/usr/bin/swiftc -module-name X", true},
		{"/usr/bin/swift-frontend -frontend -c", true},
		{"Compiling HAKit HAConnection.swift", false},
		{"clang -c foo.c", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCompilerInvocation(tt.line); got != tt.want {
			t.Errorf("IsCompilerInvocation(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsBareCompilerPath(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"/usr/bin/swift-frontend", true},
		{"/Library/Developer/Toolchains/swift.xctoolchain/usr/bin/swiftc", true},
		{"swiftc", true},
		{"/usr/bin/swiftc -parse-as-library", false},
		{"/usr/bin/swift-frontend -frontend", false},
		{"/usr/bin/swift-build", false},
	}
	for _, tt := range tests {
		if got := IsBareCompilerPath(tt.line); got != tt.want {
			t.Errorf("IsBareCompilerPath(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsValidValue(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want bool
	}{
		{"plain path", "/usr/lib", true},
		{"empty", "", false},
		{"at bound", strings.Repeat("a", MaxValueLength), true},
		{"over bound", strings.Repeat("a", MaxValueLength+1), false},
		{"nested cc1", "/usr/bin/clang -cc1 -triple", false},
		{"quoted clang", `"/usr/bin/clang" -c`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidValue(tt.val); got != tt.want {
				t.Errorf("IsValidValue(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		token string
		want  FlagKind
	}{
		{"-o", KindIgnored},
		{"-incremental", KindIgnored},
		{"-sdk", KindSingleton},
		{"-Xcc", KindOrdered},
		{"-I", KindCumulative},
		{"-enable-testing", KindBoolean},
		{"-D", KindDefine},
		{"-DDEBUG", KindDefine},
		{"-Onone", KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.token); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestFlagTablesDisjoint(t *testing.T) {
	tables := []map[string]struct{}{ignoredFlags, singletonFlags, orderedFlags, cumulativeFlags, booleanFlags}
	seen := make(map[string]int)
	for i, table := range tables {
		for flag := range table {
			if prev, ok := seen[flag]; ok {
				t.Errorf("flag %q listed in tables %d and %d", flag, prev, i)
			}
			seen[flag] = i
		}
	}
}
