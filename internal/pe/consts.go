package pe

const (
	dosSignature = 0x5A4D     // MZ
	ntSignature  = 0x00004550 // PE\0\0

	dosHeaderSize     = 64
	lfanewOffset      = 0x3C
	signatureSize     = 4
	fileHeaderSize    = 20
	optionalMagicSize = 2
	dataDirectorySize = 8
	sectionHeaderSize = 40

	importDescriptorSize = 20
	dataDirectoryImport  = 1

	// maxNameLength bounds a module name read, terminator included.
	maxNameLength = 0x200
)

// Machine types reported by Architecture.
const (
	MachineI386  = 0x14c
	MachineAMD64 = 0x8664
	MachineARM   = 0x1c0
	MachineARMNT = 0x1c4
	MachineARM64 = 0xaa64
)

// Section characteristics used for the permission string.
const (
	ScnMemExecute = 0x20000000
	ScnMemRead    = 0x40000000
	ScnMemWrite   = 0x80000000
)
