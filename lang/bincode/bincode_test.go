package bincode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleProgram() *Program {
	return &Program{
		Magic:        MagicExecutable,
		MinorVersion: 0,
		MajorVersion: 1,
		EntryIdx:     1,
		ImportsIdx:   0,
		Pool: []Const{
			StringConst("basic"),
			StringConst("main"),
			IntConst(42),
			FloatConst(3.5),
			CharConst('x'),
			NullConst(),
			TrueConst(),
			FalseConst(),
			ArrayConst([]Const{IntConst(1), IntConst(2), ArrayConst([]Const{StringConst("nested")})}),
		},
		Modules: []Module{
			{
				Kind:    ModuleKindDefault,
				NameIdx: 1,
				InitIdx: 0,
				Globals: []Global{
					{AccessFlags: AccessPublic | AccessStatic, NameIdx: 1, TypeIdx: 2},
				},
				Classes: []Class{
					{
						Kind:        ClassKindClass,
						AccessFlags: AccessPublic,
						NameIdx:     1,
						SupersIdx:   0,
						Fields: []Field{
							{Kind: FieldKindVar, AccessFlags: AccessPrivate, NameIdx: 1, TypeIdx: 2},
						},
						Methods: []Method{
							{
								Kind:         MethodKindConstructor,
								AccessFlags:  AccessPublic,
								NameIdx:      1,
								Args:         []Arg{{NameIdx: 1, TypeIdx: 2}},
								ClosureStart: 1,
								Locals:       []Local{{NameIdx: 2, TypeIdx: 3}},
								StackMax:     4,
								Code:         []byte{0x01, 0x02, 0x03, 0x04},
								Exceptions:   []ExceptionRecord{{StartPC: 0, EndPC: 4, TargetPC: 10, ExceptionIdx: 1}},
								Lines:        []LineNumber{{Times: 4, Line: 10}},
								Matches: []MatchRecord{
									{Cases: []MatchCase{{ValueIdx: 1, Location: 5}}, DefaultLocation: 20},
								},
								Meta: Metadata{{Key: "doc", Value: "ctor"}},
							},
						},
						Meta: Metadata{{Key: "doc", Value: "a class"}},
					},
				},
				Pool:       []Const{IntConst(7)},
				Submodules: nil,
				Meta:       Metadata{{Key: "doc", Value: "main module"}},
			},
		},
		Meta: Metadata{{Key: "compiler", Value: "spade"}},
	}
}

func TestRoundTrip(t *testing.T) {
	p := sampleProgram()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	got, err := Read(&buf, "")
	require.NoError(t, err)
	require.Equal(t, p, got)

	var buf2 bytes.Buffer
	require.NoError(t, Write(&buf2, got))
	require.Equal(t, buf.Bytes(), buf2.Bytes())
}

func TestReadTruncated(t *testing.T) {
	p := sampleProgram()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	full := buf.Bytes()
	for _, cut := range []int{0, 1, 4, len(full) / 2, len(full) - 1} {
		_, err := Read(bytes.NewReader(full[:cut]), "prog.spc")
		require.Error(t, err)
	}
}

func TestReadBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0, 0, 0, 0}), "bad.spc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.spc")
}

func TestReadIllegalConstTag(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.writeU32(MagicLibrary))
	require.NoError(t, w.writeU32(0))
	require.NoError(t, w.writeU32(1))
	require.NoError(t, w.writeU16(0))
	require.NoError(t, w.writeU16(0))
	require.NoError(t, w.writeU16(1)) // pool count
	require.NoError(t, w.writeU8(0xFF))

	_, err := Read(&buf, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "illegal constant tag")
}

func TestDisassembleSampleProgram(t *testing.T) {
	p := sampleProgram()
	var out bytes.Buffer
	require.NoError(t, Disassemble(&out, p))
	s := out.String()
	require.True(t, strings.Contains(s, "executable"))
	require.True(t, strings.Contains(s, "class"))
	require.True(t, strings.Contains(s, "method"))
}

func TestFileRoundTrip(t *testing.T) {
	p := sampleProgram()
	path := t.TempDir() + "/prog.spc"
	require.NoError(t, WriteFile(path, p))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, p, got)
}
