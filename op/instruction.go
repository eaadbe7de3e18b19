package op

// Instruction is an opcode plus its ordered argument list.
type Instruction struct {
	Op   Opcode
	Args []Value
}

// Program is the pair an assembler or deserializer produces: an ordered
// instruction stream and the tables map (the union of labels and #table
// entries, indistinguishable once built).
type Program struct {
	Instructions []Instruction
	Tables       map[string]int64
}

// NewProgram returns an empty, ready-to-populate Program.
func NewProgram() *Program {
	return &Program{Tables: map[string]int64{}}
}
