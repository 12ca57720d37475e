// Package asm assembles bytecode source text into a memory image.
//
// Source is line oriented. Each line holds optional labels, then one
// instruction or directive, then an optional comment:
//
//	.equ    limit 200          ; named value
//	start:  ldi   z, limit
//	        ldi   y, 1
//	loop:   add   x, y, x
//	        less  x, z
//	        jc    loop
//	        halt
//	table:  .byte 1, 2, 'a', $(limit // 2)
//
// Operands are separated by commas or blanks. Values are decimal, 0x hex,
// 0b binary or character literals. Labels may be used wherever a value is
// expected. $(...) evaluates a Starlark integer expression over the
// numeric equates and the labels.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/sarchlab/bvm/insts"
)

const (
	// maxImageSize bounds the image, including .org padding.
	maxImageSize = 1 << 24

	// maxEquateDepth bounds chains of equates naming other equates.
	maxEquateDepth = 16
)

// mnemonics maps assembler mnemonics to opcodes.
var mnemonics = func() map[string]insts.Op {
	m := make(map[string]insts.Op)
	for _, op := range insts.Ops() {
		m[op.String()] = op
	}
	return m
}()

// registerNames maps named registers to register indices.
var registerNames = map[string]uint8{
	"ip": insts.RegIP,
	"sp": insts.RegSP,
	"x":  2,
	"y":  3,
	"z":  4,
	"a":  5,
	"b":  6,
	"c":  7,
	"d":  8,
	"e":  9,
	"f":  10,
	"g":  11,
}

var (
	charLiteral = regexp.MustCompile(`'\\?[^']'`)
	identifier  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Object is an assembled program.
type Object struct {
	// Image is the memory image, starting at address 0.
	Image []byte

	// Labels maps every label to its address.
	Labels map[string]uint64
}

type stmtKind int

const (
	stmtInst stmtKind = iota
	stmtByte
	stmtOrg
)

// statement is one laid-out line. Operands are resolved in the second pass.
type statement struct {
	kind     stmtKind
	line     int
	text     string
	op       insts.Op
	operands []string
	addr     uint64
	size     uint64
}

// Assembler is a two-pass assembler. The first pass lays out statements and
// collects labels and equates; the second resolves operands and encodes.
type Assembler struct {
	predefine map[string]string

	equates map[string]string
	labels  map[string]uint64
	stmts   []statement
	pc      uint64
}

// NewAssembler creates an assembler without predefined equates.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Define predefines an equate for every following Assemble call.
func (a *Assembler) Define(name, value string) {
	if a.predefine == nil {
		a.predefine = make(map[string]string)
	}
	a.predefine[name] = value
}

// AssembleString assembles source text with a fresh assembler.
func AssembleString(src string) (*Object, error) {
	return NewAssembler().Assemble(strings.NewReader(src))
}

// Assemble reads source text and produces its image and label table.
// Errors are *SyntaxError values that carry the offending line.
func (a *Assembler) Assemble(r io.Reader) (*Object, error) {
	a.reset()

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		text := scanner.Text()
		if err := a.layout(lineno, text); err != nil {
			return nil, &SyntaxError{Line: lineno, Text: text, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	image := make([]byte, 0, a.pc)
	for i := range a.stmts {
		s := &a.stmts[i]
		code, err := a.encode(s)
		if err != nil {
			return nil, &SyntaxError{Line: s.line, Text: s.text, Err: err}
		}
		image = append(image, code...)
	}

	labels := make(map[string]uint64, len(a.labels))
	for name, addr := range a.labels {
		labels[name] = addr
	}

	return &Object{Image: image, Labels: labels}, nil
}

func (a *Assembler) reset() {
	a.equates = make(map[string]string, len(a.predefine))
	for name, value := range a.predefine {
		a.equates[name] = value
	}
	a.labels = make(map[string]uint64)
	a.stmts = nil
	a.pc = 0
}

// layout is the first pass over one line.
func (a *Assembler) layout(lineno int, text string) error {
	line := clean(text)

	// labels end at a colon before the first blank
	for {
		end := strings.IndexFunc(line, unicode.IsSpace)
		if end < 0 {
			end = len(line)
		}
		colon := strings.IndexByte(line[:end], ':')
		if colon < 0 {
			break
		}
		if err := a.defineLabel(line[:colon]); err != nil {
			return err
		}
		line = strings.TrimSpace(line[colon+1:])
	}

	if line == "" {
		return nil
	}

	mnemonic, rest := line, ""
	if end := strings.IndexFunc(line, unicode.IsSpace); end >= 0 {
		mnemonic, rest = line[:end], line[end:]
	}
	mnemonic = strings.ToLower(mnemonic)
	operands := splitOperands(rest)

	s := statement{line: lineno, text: text, operands: operands}

	switch mnemonic {
	case ".equ":
		return a.defineEquate(operands)
	case ".org":
		if len(operands) != 1 {
			return fmt.Errorf("%w: .org takes 1, got %d", ErrOperandCount, len(operands))
		}
		addr, err := a.value(operands[0])
		if err != nil {
			return err
		}
		if addr < a.pc {
			return fmt.Errorf("%w: 0x%X is below 0x%X", ErrOrgBackwards, addr, a.pc)
		}
		if addr > maxImageSize {
			return fmt.Errorf("%w: .org 0x%X", ErrImageTooLarge, addr)
		}
		s.kind = stmtOrg
		s.size = addr - a.pc
	case ".byte":
		if len(operands) == 0 {
			return fmt.Errorf("%w: .byte needs at least 1", ErrOperandCount)
		}
		s.kind = stmtByte
		s.size = uint64(len(operands))
	default:
		op, ok := mnemonics[mnemonic]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownMnemonic, mnemonic)
		}
		info, _ := insts.Lookup(op)
		if want := operandCount(info.Format); len(operands) != want {
			return fmt.Errorf("%w: %s takes %d, got %d",
				ErrOperandCount, mnemonic, want, len(operands))
		}
		s.kind = stmtInst
		s.op = op
		s.size = uint64(info.Len)
	}

	s.addr = a.pc
	a.pc += s.size
	if a.pc > maxImageSize {
		return ErrImageTooLarge
	}
	a.stmts = append(a.stmts, s)

	return nil
}

func (a *Assembler) defineLabel(name string) error {
	if !identifier.MatchString(name) || isRegisterName(name) {
		return fmt.Errorf("%w %q", ErrInvalidLabel, name)
	}
	if _, ok := a.labels[name]; ok {
		return fmt.Errorf("%w %q", ErrDuplicateLabel, name)
	}
	a.labels[name] = a.pc
	return nil
}

// defineEquate handles ".equ NAME VALUE". The value is kept as text and
// substituted wherever NAME appears as a whole operand.
func (a *Assembler) defineEquate(operands []string) error {
	if len(operands) != 2 || !identifier.MatchString(operands[0]) {
		return ErrEquateSyntax
	}
	name := operands[0]
	if _, ok := a.equates[name]; ok {
		return fmt.Errorf("%w %q", ErrDuplicateEquate, name)
	}
	a.equates[name] = operands[1]
	return nil
}

// encode is the second pass over one statement.
func (a *Assembler) encode(s *statement) ([]byte, error) {
	switch s.kind {
	case stmtOrg:
		return make([]byte, s.size), nil
	case stmtByte:
		out := make([]byte, 0, len(s.operands))
		for _, word := range s.operands {
			b, err := a.byteValue(word)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}

	info, _ := insts.Lookup(s.op)
	inst := &insts.Instruction{Op: s.op, Format: info.Format}

	switch info.Format {
	case insts.FormatALU:
		regs, err := a.registers(s.operands)
		if err != nil {
			return nil, err
		}
		inst.Rn, inst.Rm, inst.Rd = regs[0], regs[1], regs[2]
	case insts.FormatCompare:
		regs, err := a.registers(s.operands)
		if err != nil {
			return nil, err
		}
		inst.Rn, inst.Rm = regs[0], regs[1]
	case insts.FormatLoad:
		regs, err := a.registers(s.operands)
		if err != nil {
			return nil, err
		}
		inst.Rn, inst.Rd = regs[0], regs[1]
	case insts.FormatStore:
		regs, err := a.registers(s.operands)
		if err != nil {
			return nil, err
		}
		inst.Rd, inst.Rn = regs[0], regs[1]
	case insts.FormatLoadImm:
		regs, err := a.registers(s.operands[:1])
		if err != nil {
			return nil, err
		}
		imm, err := a.byteValue(s.operands[1])
		if err != nil {
			return nil, err
		}
		inst.Rd, inst.Imm = regs[0], uint64(imm)
	case insts.FormatBranch:
		target, err := a.byteValue(s.operands[0])
		if err != nil {
			return nil, err
		}
		inst.Imm = uint64(target)
	}

	return inst.Encode(), nil
}

func (a *Assembler) registers(words []string) ([]uint8, error) {
	regs := make([]uint8, len(words))
	for i, word := range words {
		r, err := a.register(word)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

func (a *Assembler) register(word string) (uint8, error) {
	name, err := a.substitute(word)
	if err != nil {
		return 0, err
	}
	r, err := ParseRegister(name)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidRegister, word)
	}
	return r, nil
}

// ParseRegister returns the index of a register name: ip, sp, x..g or
// r0..r11, in any case.
func ParseRegister(name string) (uint8, error) {
	lower := strings.ToLower(name)

	if r, ok := registerNames[lower]; ok {
		return r, nil
	}
	if strings.HasPrefix(lower, "r") {
		n, err := strconv.ParseUint(lower[1:], 10, 8)
		if err == nil && n < insts.NumRegisters {
			return uint8(n), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrInvalidRegister, name)
}

func (a *Assembler) byteValue(word string) (byte, error) {
	v, err := a.value(word)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("%w: %s is %d, want 0..255", ErrValueRange, word, v)
	}
	return byte(v), nil
}

// value resolves a number, label, equate or $(...) expression.
func (a *Assembler) value(word string) (uint64, error) {
	word, err := a.substitute(word)
	if err != nil {
		return 0, err
	}

	if strings.HasPrefix(word, "$(") && strings.HasSuffix(word, ")") {
		return a.eval(word[2 : len(word)-1])
	}
	if addr, ok := a.labels[word]; ok {
		return addr, nil
	}

	v, err := strconv.ParseUint(word, 0, 64)
	if err != nil {
		if identifier.MatchString(word) {
			return 0, fmt.Errorf("%w %q", ErrUndefinedLabel, word)
		}
		return 0, fmt.Errorf("%w %q", ErrInvalidValue, word)
	}
	return v, nil
}

// substitute replaces an operand that names an equate by the equate's text.
func (a *Assembler) substitute(word string) (string, error) {
	for depth := 0; ; depth++ {
		text, ok := a.equates[word]
		if !ok {
			return word, nil
		}
		if depth == maxEquateDepth {
			return "", fmt.Errorf("%w at %q", ErrEquateDepth, word)
		}
		word = text
	}
}

// eval evaluates a Starlark integer expression. Labels and equates with
// numeric values are visible as globals.
func (a *Assembler) eval(expr string) (uint64, error) {
	env := starlark.StringDict{}
	for name, text := range a.equates {
		if v, err := strconv.ParseUint(text, 0, 64); err == nil {
			env[name] = starlark.MakeUint64(v)
		}
	}
	for name, addr := range a.labels {
		env[name] = starlark.MakeUint64(addr)
	}

	thread := &starlark.Thread{Name: "asm"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread,
		"expr", "result = "+expr+"\n", env)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrExpression, expr, err)
	}

	result, ok := globals["result"].(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%w %q: not an integer", ErrExpression, expr)
	}
	v, ok := result.Uint64()
	if !ok {
		return 0, fmt.Errorf("%w: %s is %v", ErrValueRange, expr, result)
	}
	return v, nil
}

func operandCount(f insts.Format) int {
	switch f {
	case insts.FormatALU:
		return 3
	case insts.FormatCompare, insts.FormatLoad, insts.FormatStore, insts.FormatLoadImm:
		return 2
	case insts.FormatBranch:
		return 1
	default:
		return 0
	}
}

func isRegisterName(name string) bool {
	name = strings.ToLower(name)
	if _, ok := registerNames[name]; ok {
		return true
	}
	if strings.HasPrefix(name, "r") {
		_, err := strconv.ParseUint(name[1:], 10, 8)
		return err == nil
	}
	return false
}

// clean expands character literals, strips the comment and trims the line.
func clean(text string) string {
	line := charLiteral.ReplaceAllStringFunc(text, func(lit string) string {
		body := lit[1 : len(lit)-1]
		if body[0] != '\\' {
			if len(body) != 1 {
				return lit
			}
			return strconv.Itoa(int(body[0]))
		}
		switch body[1:] {
		case "n":
			return "10"
		case "r":
			return "13"
		case "t":
			return "9"
		case "0":
			return "0"
		case "\\":
			return "92"
		default:
			return lit
		}
	})

	if i := strings.IndexAny(line, ";#"); i >= 0 {
		line = line[:i]
	}

	return strings.TrimSpace(line)
}

// splitOperands splits on commas and blanks outside parentheses.
func splitOperands(s string) []string {
	var out []string
	depth, start := 0, -1

	flush := func(end int) {
		if start >= 0 {
			out = append(out, s[start:end])
			start = -1
		}
	}

	for i, c := range s {
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == ',' || unicode.IsSpace(c)):
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(s))

	return out
}
