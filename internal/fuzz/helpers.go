// Package fuzz seeds the corpora of the decoder fuzz targets.
package fuzz

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// AddFromDir adds every file in dir to the corpus of f.
// Files in the "go test fuzz v1" format are decoded, other files are added as is.
// A missing directory adds nothing.
func AddFromDir(f *testing.F, dir string) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		f.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			f.Fatal(err)
		}
		if !bytes.HasPrefix(b, []byte("go test fuzz")) {
			f.Add(b)
			continue
		}
		vals, err := unmarshalCorpusFile(b)
		if err != nil {
			f.Fatalf("%s: %v", e.Name(), err)
		}
		for _, v := range vals {
			f.Add(v)
		}
	}
}

// AddTruncated adds b and n prefixes of b, evenly spread over its length.
func AddTruncated(f *testing.F, b []byte, n int) {
	f.Add(b)
	if n <= 0 || len(b) == 0 {
		return
	}
	step := max(len(b)/n, 1)
	for i := len(b) - 1; i > 0; i -= step {
		f.Add(bytes.Clone(b[:i]))
	}
}

// AddCorrupted adds n copies of b, each with one byte changed.
// The same seed gives the same copies.
func AddCorrupted(f *testing.F, b []byte, n int, seed int64) {
	if len(b) == 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		c := bytes.Clone(b)
		c[rng.Intn(len(c))] ^= byte(1 + rng.Intn(255))
		f.Add(c)
	}
}

// unmarshalCorpusFile decodes corpus bytes into their respective values.
func unmarshalCorpusFile(b []byte) ([][]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty string")
	}
	lines := bytes.Split(b, []byte("\n"))
	if len(lines) < 2 {
		return nil, fmt.Errorf("must include version and at least one value")
	}
	var vals = make([][]byte, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		v, err := parseCorpusValue(line)
		if err != nil {
			return nil, fmt.Errorf("malformed line %q: %v", line, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// parseCorpusValue parses a single []byte("...") line.
func parseCorpusValue(line []byte) ([]byte, error) {
	fs := token.NewFileSet()
	expr, err := parser.ParseExprFrom(fs, "(test)", line, 0)
	if err != nil {
		return nil, err
	}
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil, fmt.Errorf("expected call expression")
	}
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("expected call expression with 1 argument; got %d", len(call.Args))
	}
	arg := call.Args[0]

	arrayType, ok := call.Fun.(*ast.ArrayType)
	if !ok || arrayType.Len != nil {
		return nil, fmt.Errorf("expected []byte")
	}
	elt, ok := arrayType.Elt.(*ast.Ident)
	if !ok || elt.Name != "byte" {
		return nil, fmt.Errorf("expected []byte")
	}
	lit, ok := arg.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return nil, fmt.Errorf("string literal required for type []byte")
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
