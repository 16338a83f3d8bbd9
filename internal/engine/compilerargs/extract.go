// Package compilerargs recovers swiftc arguments from a verbose
// `swift build` transcript so SourceKit requests can be issued with the same
// search paths, target and defines as the real build.
package compilerargs

import (
	"strings"

	"github.com/google/shlex"
)

// Result holds the per-flag params and the flattened argument list.
type Result struct {
	Params       *Params  `json:"params"`
	CompilerArgs []string `json:"compilerArgs"`
}

// Empty reports whether no compiler argument could be recovered.
func (r Result) Empty() bool {
	return len(r.CompilerArgs) == 0
}

// SelectBestLine picks the longest trimmed line that invokes the compiler.
// Ties keep the earliest line. Returns "" when nothing qualifies.
func SelectBestLine(transcript string) string {
	best := ""
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if !IsCompilerInvocation(line) || IsBareCompilerPath(line) {
			continue
		}
		if len(line) > len(best) {
			best = line
		}
	}
	return best
}

// Tokenize splits a command line honoring shell quoting and escapes.
// Unbalanced quotes fall back to plain whitespace splitting.
func Tokenize(line string) []string {
	tokens, err := shlex.Split(line)
	if err != nil {
		return strings.Fields(line)
	}
	return tokens
}

// ClassifyTokens walks tokens left to right and records every recognized flag.
func ClassifyTokens(tokens []string) *Params {
	params := NewParams()
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		hasNext := i+1 < len(tokens)

		switch Classify(token) {
		case KindIgnored:
			if hasNext && !IsFlagToken(tokens[i+1]) {
				i++
			}
		case KindSingleton:
			if hasNext {
				if val := tokens[i+1]; IsValidValue(val) {
					params.SetSingle(token, val)
				}
				i++
			}
		case KindOrdered:
			if hasNext {
				if val := tokens[i+1]; IsValidValue(val) {
					params.Append(token, val)
				}
				i++
			}
		case KindCumulative:
			if hasNext {
				if val := tokens[i+1]; IsValidValue(val) {
					params.Add(token, KindCumulative, val)
				}
				i++
			}
		case KindBoolean:
			params.SetBool(token)
		case KindDefine:
			if val := strings.TrimPrefix(token, DefineFlag); val != "" {
				params.Add(DefineFlag, KindDefine, val)
			} else if hasNext {
				if val := tokens[i+1]; val != "" {
					params.Add(DefineFlag, KindDefine, val)
				}
				i++
			}
		}
	}
	return params
}

// Extract parses a verbose build transcript. extraArgs are prepended to the
// flattened list as given. A transcript without a compiler line yields an
// empty result, extras included; that is not an error.
func Extract(transcript string, extraArgs []string) Result {
	line := SelectBestLine(transcript)
	if line == "" {
		return Result{Params: NewParams(), CompilerArgs: []string{}}
	}
	params := ClassifyTokens(Tokenize(line))

	args := make([]string, 0, len(extraArgs)+params.Len()*2)
	args = append(args, extraArgs...)
	args = append(args, params.Args()...)
	return Result{Params: params, CompilerArgs: args}
}

// SplitArgs splits an override string such as SWIFT_COMPILER_ARGS.
func SplitArgs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return Tokenize(raw)
}
