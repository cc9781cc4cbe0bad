// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elftest

import "debug/elf"

// Layout of the Exec64 image.
const (
	ExecBase = 0x400000
	TextAddr = ExecBase + 0x80
	TextSize = 32
)

// Text is the x86-64 code in the Exec64 image: main, then helper, then
// padding.
var Text = []byte{
	// main: push %rbp; mov %rsp,%rbp; xor %eax,%eax; pop %rbp; ret
	0x55, 0x48, 0x89, 0xe5, 0x31, 0xc0, 0x5d, 0xc3,
	// helper: call main; ret; nop
	0xe8, 0xf3, 0xff, 0xff, 0xff, 0xc3, 0x90, 0x90,
	0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90,
	0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90,
}

// Minimal64 describes the smallest useful executable: one .text section
// covered by one PT_LOAD segment that maps the whole file.
//
// The file header is at 0, the program header at 64, .text at 120 with
// address 0x400078, .shstrtab at 136, and the section header table at
// 160. The file is 352 bytes.
func Minimal64() *File {
	return &File{
		Class:   elf.ELFCLASS64,
		Data:    elf.ELFDATA2LSB,
		Type:    elf.ET_EXEC,
		Machine: elf.EM_X86_64,
		Entry:   0x400078,
		Base:    ExecBase,
		Sections: []Section{
			{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Align: 1, Data: Text[:16]},
		},
		Segments: []Segment{
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Align: 0x1000, WholeFile: true},
		},
	}
}

// Exec64 builds a little-endian x86-64 executable with a static symbol
// table. Its symbols, in order after the null symbol, are the .text
// section symbol, main (global, 8 bytes), helper (local, no size), puts
// (undefined), and answer (absolute, value 42).
func Exec64() *Image {
	f := &File{
		Class:   elf.ELFCLASS64,
		Data:    elf.ELFDATA2LSB,
		Type:    elf.ET_EXEC,
		Machine: elf.EM_X86_64,
		Entry:   TextAddr,
		Base:    ExecBase,
		Segments: []Segment{
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Align: 0x1000, WholeFile: true},
		},
	}
	strtab, names := Strings("main", "helper", "puts", "answer")
	f.Sections = []Section{
		{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Align: 16, Data: Text},
		{Name: ".symtab", Type: elf.SHT_SYMTAB, Link: ".strtab", Info: 2, Align: 8, Data: f.SymTab(
			Sym{},
			Sym{Bind: elf.STB_LOCAL, Type: elf.STT_SECTION, Shndx: 1, Value: TextAddr},
			Sym{Name: names["main"], Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Shndx: 1, Value: TextAddr, Size: 8},
			Sym{Name: names["helper"], Bind: elf.STB_LOCAL, Type: elf.STT_FUNC, Shndx: 1, Value: TextAddr + 8},
			Sym{Name: names["puts"], Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Shndx: elf.SHN_UNDEF},
			Sym{Name: names["answer"], Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Other: uint8(elf.STV_HIDDEN), Shndx: elf.SHN_ABS, Value: 42},
		)},
		{Name: ".strtab", Type: elf.SHT_STRTAB, Align: 1, Data: strtab},
	}
	return f.Build()
}

// SharedLib64 builds a little-endian x86-64 shared object with a dynamic
// section, dynamic symbols, RELA and PLT relocations, and a .tbss
// section covered by a PT_TLS segment.
//
// The dynamic section is terminated by DT_NULL and followed by one
// stray DT_NEEDED entry.
func SharedLib64() *Image {
	f := &File{
		Class:   elf.ELFCLASS64,
		Data:    elf.ELFDATA2LSB,
		Type:    elf.ET_DYN,
		Machine: elf.EM_X86_64,
		Segments: []Segment{
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W | elf.PF_X, Align: 0x1000, WholeFile: true},
			{Type: elf.PT_DYNAMIC, Flags: elf.PF_R | elf.PF_W, Align: 8, Sections: []string{".dynamic"}},
			{Type: elf.PT_TLS, Flags: elf.PF_R, Align: 8, Sections: []string{".tbss"}},
			{Type: elf.PT_GNU_STACK, Flags: elf.PF_R | elf.PF_W, Align: 16},
		},
	}
	dynstr, names := Strings("libc.so.6", "libfoo.so", "puts", "foo", "/opt/lib")
	dynsym := f.SymTab(
		Sym{},
		Sym{Name: names["puts"], Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Shndx: elf.SHN_UNDEF},
		Sym{Name: names["foo"], Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Shndx: 5, Value: 0, Size: 4},
	)
	relaDyn := f.RelTab(true,
		Rel{Off: 0x2000, Sym: 1, Type: uint32(elf.R_X86_64_GLOB_DAT)},
		Rel{Off: 0x2008, Type: uint32(elf.R_X86_64_RELATIVE), Addend: 0x1000},
	)
	relaPLT := f.RelTab(true,
		Rel{Off: 0x2010, Sym: 1, Type: uint32(elf.R_X86_64_JMP_SLOT)},
	)
	dynamic := func(addr map[string]uint64) []byte {
		return f.DynTab(
			Dyn{elf.DT_NEEDED, uint64(names["libc.so.6"])},
			Dyn{elf.DT_SONAME, uint64(names["libfoo.so"])},
			Dyn{elf.DT_RUNPATH, uint64(names["/opt/lib"])},
			Dyn{elf.DT_STRTAB, addr[".dynstr"]},
			Dyn{elf.DT_STRSZ, uint64(len(dynstr))},
			Dyn{elf.DT_SYMTAB, addr[".dynsym"]},
			Dyn{elf.DT_SYMENT, 24},
			Dyn{elf.DT_RELA, addr[".rela.dyn"]},
			Dyn{elf.DT_RELASZ, uint64(len(relaDyn))},
			Dyn{elf.DT_RELAENT, 24},
			Dyn{elf.DT_JMPREL, addr[".rela.plt"]},
			Dyn{elf.DT_PLTRELSZ, uint64(len(relaPLT))},
			Dyn{elf.DT_PLTREL, uint64(elf.DT_RELA)},
			Dyn{elf.DT_FLAGS, uint64(elf.DF_BIND_NOW)},
			Dyn{elf.DT_FLAGS, uint64(elf.DF_BIND_NOW | elf.DF_STATIC_TLS)},
			Dyn{elf.DT_NULL, 0},
			Dyn{elf.DT_NEEDED, 999},
		)
	}
	f.Sections = []Section{
		{Name: ".dynsym", Type: elf.SHT_DYNSYM, Flags: elf.SHF_ALLOC, Link: ".dynstr", Info: 1, Align: 8, Data: dynsym},
		{Name: ".dynstr", Type: elf.SHT_STRTAB, Flags: elf.SHF_ALLOC, Align: 1, Data: dynstr},
		{Name: ".rela.dyn", Type: elf.SHT_RELA, Flags: elf.SHF_ALLOC, Link: ".dynsym", Align: 8, Data: relaDyn},
		{Name: ".rela.plt", Type: elf.SHT_RELA, Flags: elf.SHF_ALLOC | elf.SHF_INFO_LINK, Link: ".dynsym", Align: 8, Data: relaPLT},
		{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Align: 16, Data: Text[:16]},
		{Name: ".tbss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_TLS, Align: 8, Size: 16},
		{Name: ".dynamic", Type: elf.SHT_DYNAMIC, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Link: ".dynstr", Align: 8, Data: dynamic(nil)},
		{Name: ".comment", Type: elf.SHT_PROGBITS, Flags: elf.SHF_MERGE | elf.SHF_STRINGS, Entsize: 1, Align: 1, Data: []byte("GCC: test\x00")},
	}
	// The dynamic section's size does not depend on the addresses it
	// holds, so the first layout fixes them.
	f.Sections[6].Data = dynamic(f.Build().Addr)
	return f.Build()
}

// Rel32BE builds a big-endian 32-bit PowerPC relocatable object.
//
// .rela.text relocates .text against .symtab. .rel.nolink has no link
// and .rela.badlink links to .text, so neither can be resolved.
func Rel32BE() *Image {
	f := &File{
		Class:   elf.ELFCLASS32,
		Data:    elf.ELFDATA2MSB,
		Type:    elf.ET_REL,
		Machine: elf.EM_PPC,
	}
	strtab, names := Strings("func", "ext")
	f.Sections = []Section{
		{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Align: 4, Data: make([]byte, 8)},
		{Name: ".symtab", Type: elf.SHT_SYMTAB, Link: ".strtab", Info: 2, Align: 4, Data: f.SymTab(
			Sym{},
			Sym{Bind: elf.STB_LOCAL, Type: elf.STT_SECTION, Shndx: 1},
			Sym{Name: names["func"], Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Shndx: 1, Size: 8},
			Sym{Name: names["ext"], Bind: elf.STB_GLOBAL, Type: elf.STT_NOTYPE, Shndx: elf.SHN_UNDEF},
		)},
		{Name: ".strtab", Type: elf.SHT_STRTAB, Align: 1, Data: strtab},
		{Name: ".rela.text", Type: elf.SHT_RELA, Flags: elf.SHF_INFO_LINK, Link: ".symtab", Info: 1, Align: 4, Data: f.RelTab(true,
			Rel{Off: 0, Sym: 3, Type: uint32(elf.R_PPC_ADDR32), Addend: 4},
			Rel{Off: 4, Sym: 1, Type: uint32(elf.R_PPC_REL24), Addend: -4},
		)},
		{Name: ".rel.nolink", Type: elf.SHT_REL, Align: 4, Data: f.RelTab(false, Rel{Sym: 2, Type: uint32(elf.R_PPC_ADDR32)})},
		{Name: ".rela.badlink", Type: elf.SHT_RELA, Link: ".text", Align: 4, Data: f.RelTab(true, Rel{Sym: 2, Type: uint32(elf.R_PPC_ADDR32)})},
	}
	return f.Build()
}
