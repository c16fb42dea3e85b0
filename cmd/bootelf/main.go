package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/yoshipep/aarch64-bootloader/boot"
	"github.com/yoshipep/aarch64-bootloader/loader"
	"github.com/yoshipep/aarch64-bootloader/mem"
	"github.com/yoshipep/aarch64-bootloader/uart"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// printError prints an error, and a stacktrace if available.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		for _, f := range err.StackTrace() {
			fmt.Fprintf(os.Stderr, "  %+v\n", f)
			if fmt.Sprintf("%n", f) == "main" {
				break
			}
		}
	}
}

func main() {
	fs := flag.NewFlagSet("bootelf", flag.ExitOnError)
	base := fs.Uint64("base", 0x40000000, "RAM window base address")
	size := fs.Uint64("size", 0x8000000, "RAM window size")
	clock := fs.Uint64("clock", 24000000, "UART base clock in Hz")
	baud := fs.Uint64("baud", 115200, "UART baud rate")
	verbose := fs.Bool("v", false, "print segment placement and memory map")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <kernel.elf>\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		os.Exit(1)
	}
	image, err := ioutil.ReadFile(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	console := uart.New(uart.NewSim(os.Stderr), uint32(*clock), uint32(*baud))
	console.Configure()

	ram := &mem.Phys{}
	ram.Map(*base, *size, mem.PROT_ALL, true).Desc = "ram"

	entry, err := boot.New(ram, console).LoadKernel(image)
	if err != nil {
		// a real boot would halt here; exit non-zero instead
		printError(err)
		os.Exit(1)
	}

	if *verbose {
		hdr, _ := loader.ParseHeader(image)
		phdrs, _ := hdr.ProgHeaders(image)
		for i := range phdrs {
			ph := &phdrs[i]
			if !ph.Loadable() {
				continue
			}
			fmt.Printf("load 0x%x-0x%x %s (0x%x file + 0x%x bss)\n",
				ph.Vaddr, ph.Vaddr+ph.Memsz, ph.Perm(), ph.Filesz, ph.Memsz-ph.Filesz)
		}
		fmt.Println(ram.Regions().String())
	}
	fmt.Printf("[entry point @ 0x%x]\n", entry)
}
