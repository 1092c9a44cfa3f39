/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package replay runs scripted allocation sequences against a buddy allocator.
//
// A script has one operation per line:
//
//	alloc <name> <size>   allocate size bytes and bind the address to name
//	free <name>           free the address bound to name
//	dump                  print the free list counts
//	check                 validate the allocator invariants
//	reset                 drop every allocation and binding
//
// Sizes accept a K, M or G suffix (powers of 1024). Blank lines and text after
// '#' are ignored.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the operation of a script line.
type Kind int

const (
	Alloc Kind = iota
	Free
	Dump
	Check
	Reset
)

var kindNames = [...]string{
	Alloc: "alloc",
	Free:  "free",
	Dump:  "dump",
	Check: "check",
	Reset: "reset",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Op is one parsed script line.
type Op struct {
	Kind Kind
	Name string
	Size int
	Line int
}

func (op Op) String() string {
	switch op.Kind {
	case Alloc:
		return fmt.Sprintf("alloc %s %d", op.Name, op.Size)
	case Free:
		return "free " + op.Name
	}
	return op.Kind.String()
}

// maxSize bounds parsed sizes. Arenas top out at 4GB, larger requests still parse and fail in Alloc.
const maxSize = 1 << 40

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("replay: syntax error")

// Parse reads a script.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		op, err := parseOp(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, line, err)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

func parseOp(fields []string) (Op, error) {
	switch strings.ToLower(fields[0]) {
	case "alloc":
		if len(fields) != 3 {
			return Op{}, errors.New("usage: alloc <name> <size>")
		}
		size, err := ParseSize(fields[2])
		if err != nil {
			return Op{}, err
		}
		return Op{Kind: Alloc, Name: fields[1], Size: size}, nil
	case "free":
		if len(fields) != 2 {
			return Op{}, errors.New("usage: free <name>")
		}
		return Op{Kind: Free, Name: fields[1]}, nil
	case "dump":
		return nullary(Dump, fields)
	case "check":
		return nullary(Check, fields)
	case "reset":
		return nullary(Reset, fields)
	}
	return Op{}, fmt.Errorf("unknown operation %q", fields[0])
}

func nullary(k Kind, fields []string) (Op, error) {
	if len(fields) != 1 {
		return Op{}, fmt.Errorf("%s takes no arguments", k)
	}
	return Op{Kind: k}, nil
}

// ParseSize parses a byte count with an optional K, M or G suffix.
func ParseSize(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty size")
	}
	shift := 0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		shift = 10
	case "M":
		shift = 20
	case "G":
		shift = 30
	}
	num := s
	if shift > 0 {
		num = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n<<uint(shift) > maxSize {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return int(n << uint(shift)), nil
}
