package compilerargs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	xcodePlatform = "/Applications/Xcode.app/Contents/Developer/Platforms/MacOSX.platform/Developer"
	hakitDebug    = "/Volumes/Work/sandbox/HAKit/.build/x86_64-apple-macosx/debug"
)

func readTranscript(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestExtract_CapturedTranscript(t *testing.T) {
	res := Extract(readTranscript(t, "swift-build-output1.txt"), nil)
	require.NotNil(t, res.Params)

	assert.Equal(t, "x86_64-apple-macosx10.14", res.Params.Single("-target"))
	assert.Equal(t, xcodePlatform+"/SDKs/MacOSX15.0.sdk", res.Params.Single("-sdk"))
	assert.ElementsMatch(t, []string{"SWIFT_PACKAGE", "DEBUG"}, res.Params.Values("-D"))
	assert.True(t, res.Params.Has("-enable-testing"))
	assert.False(t, res.Params.Has("-module-name"))
	assert.False(t, res.Params.Has("-incremental"))

	assert.Equal(t, []string{
		"-parse-as-library",
		"-I", hakitDebug + "/Modules",
		"-I", xcodePlatform + "/usr/lib",
		"-target", "x86_64-apple-macosx10.14",
		"-enable-testing",
		"-D", "SWIFT_PACKAGE",
		"-D", "DEBUG",
		"-module-cache-path", hakitDebug + "/ModuleCache",
		"-swift-version", "5",
		"-sdk", xcodePlatform + "/SDKs/MacOSX15.0.sdk",
		"-F", xcodePlatform + "/Library/Frameworks",
		"-L", xcodePlatform + "/usr/lib",
		"-Xcc", "-isysroot",
		"-Xcc", xcodePlatform + "/SDKs/MacOSX15.0.sdk",
		"-Xcc", "-F",
		"-Xcc", xcodePlatform + "/Library/Frameworks",
		"-Xcc", "-fPIC",
		"-Xcc", "-g",
	}, res.CompilerArgs)
}

func TestExtract_TargetDefinesAndBooleans(t *testing.T) {
	line := "/usr/bin/swiftc -target x86_64-apple-macosx10.14 -D SWIFT_PACKAGE -D DEBUG -sdk /sdk/MacOSX.sdk -enable-testing"
	res := Extract(line, nil)

	assert.Equal(t, "x86_64-apple-macosx10.14", res.Params.Single("-target"))
	assert.Equal(t, []string{"SWIFT_PACKAGE", "DEBUG"}, res.Params.Values("-D"))
	v, ok := res.Params.Get("-enable-testing")
	require.True(t, ok)
	assert.Equal(t, KindBoolean, v.Kind)
}

func TestExtract_NoCompilerLine(t *testing.T) {
	for _, transcript := range []string{
		"",
		"Building for debugging...\nBuild complete!",
		"/usr/bin/swift-frontend\n/usr/bin/swiftc\n",
	} {
		res := Extract(transcript, []string{"-Xcc", "-Wno-error"})
		assert.Equal(t, 0, res.Params.Len(), "transcript %q", transcript)
		assert.Empty(t, res.CompilerArgs, "transcript %q", transcript)
		assert.True(t, res.Empty())
	}
}

func TestExtract_Idempotent(t *testing.T) {
	transcript := readTranscript(t, "swift-build-output1.txt")
	first := Extract(transcript, nil)
	second := Extract(transcript, nil)

	assert.Equal(t, first.CompilerArgs, second.CompilerArgs)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExtract_ExtraArgsPrepended(t *testing.T) {
	res := Extract("swiftc -swift-version 5", []string{"-Xfrontend", "-disable-availability-checking"})
	assert.Equal(t, []string{"-Xfrontend", "-disable-availability-checking", "-swift-version", "5"}, res.CompilerArgs)
}

func TestClassifyTokens(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{
			name:   "singleton last wins",
			tokens: []string{"-target", "arm64-apple-macosx10.13", "-target", "x86_64-apple-macosx10.14"},
			want:   []string{"-target", "x86_64-apple-macosx10.14"},
		},
		{
			name:   "ordered keeps duplicates",
			tokens: []string{"-Xcc", "-g", "-Xcc", "-g"},
			want:   []string{"-Xcc", "-g", "-Xcc", "-g"},
		},
		{
			name:   "cumulative deduplicates",
			tokens: []string{"-I", "/a", "-I", "/b", "-I", "/a"},
			want:   []string{"-I", "/a", "-I", "/b"},
		},
		{
			name:   "boolean idempotent",
			tokens: []string{"-enable-testing", "-enable-testing"},
			want:   []string{"-enable-testing"},
		},
		{
			name:   "ignored consumes value",
			tokens: []string{"-module-name", "HAKit", "-parse-as-library"},
			want:   []string{"-parse-as-library"},
		},
		{
			name:   "ignored leaves following flag",
			tokens: []string{"-enable-objc-interop", "-parse-as-library"},
			want:   []string{"-parse-as-library"},
		},
		{
			name:   "define attached and detached",
			tokens: []string{"-DDEBUG", "-D", "SWIFT_PACKAGE", "-DDEBUG"},
			want:   []string{"-D", "DEBUG", "-D", "SWIFT_PACKAGE"},
		},
		{
			name:   "invalid value consumed and dropped",
			tokens: []string{"-sdk", `/usr/bin/clang" -cc1 -triple`, "-enable-testing"},
			want:   []string{"-enable-testing"},
		},
		{
			name:   "flag without value at end",
			tokens: []string{"-enable-testing", "-sdk"},
			want:   []string{"-enable-testing"},
		},
		{
			name:   "unknown tokens ignored",
			tokens: []string{"-Onone", "-c", "@sources", "-g"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTokens(tt.tokens).Args()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectBestLine(t *testing.T) {
	transcript := "  /usr/bin/swift-frontend  \nswiftc -a\n/usr/bin/swiftc -module-name X -I /long/path\nswiftc -b -c\n"
	assert.Equal(t, "/usr/bin/swiftc -module-name X -I /long/path", SelectBestLine(transcript))

	tie := "swiftc -aaa\nswiftc -bbb\n"
	assert.Equal(t, "swiftc -aaa", SelectBestLine(tie))

	assert.Equal(t, "", SelectBestLine("clang -c foo.c"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"swiftc", "-I", "/path with space", "-D", "X"},
		Tokenize(`swiftc -I "/path with space" -D X`))
	assert.Equal(t,
		[]string{"swiftc", "-I", "/a b"},
		Tokenize(`swiftc -I /a\ b`))
	assert.Equal(t,
		[]string{"-external-plugin-path", "/p/plugins#/p/swift-plugin-server"},
		Tokenize("-external-plugin-path /p/plugins#/p/swift-plugin-server"))
	assert.Equal(t,
		[]string{"swiftc", `"unterminated`},
		Tokenize(`swiftc "unterminated`))
}

func TestParamsMarshalJSON(t *testing.T) {
	params := ClassifyTokens([]string{"-target", "t", "-enable-testing", "-D", "A", "-Xcc", "-g"})
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Equal(t, `{"-target":"t","-enable-testing":true,"-D":["A"],"-Xcc":["-g"]}`, string(raw))
}
