// Command storageshell is an interactive REPL over a storage Handle,
// useful for poking at page/index behavior by hand.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mnohosten/embedstore/pkg/storage"
)

const banner = `embedstore storageshell
Type 'help' for available commands, 'exit' to quit.

`

type shell struct {
	handle  *storage.Handle
	scanner *bufio.Scanner
}

func newShell(dataDir string) (*shell, error) {
	h, err := storage.Open(storage.DefaultConfig(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open storage handle: %w", err)
	}
	return &shell{
		handle:  h,
		scanner: bufio.NewScanner(os.Stdin),
	}, nil
}

func (s *shell) run() error {
	fmt.Print(banner)
	for {
		fmt.Print("storage> ")
		if !s.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("goodbye")
			return nil
		}
		if err := s.execute(line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
	return nil
}

func (s *shell) execute(line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		fmt.Println("commands: help, newpage, getpage <id>, putpage <id> <dirty:true|false>, checkpoint, stats, exit")
	case "newpage":
		page, err := s.handle.NewPage()
		if err != nil {
			return err
		}
		if page == nil {
			return fmt.Errorf("no free frame available")
		}
		fmt.Printf("allocated page %d\n", page.Header.PageID)
	case "getpage":
		if len(args) != 1 {
			return fmt.Errorf("usage: getpage <id>")
		}
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		page, err := s.handle.GetPage(storage.PageID(id))
		if err != nil {
			return err
		}
		if page == nil {
			fmt.Println("not found")
			return nil
		}
		fmt.Printf("page %d: lsn=%d dirty=%v\n", page.Header.PageID, page.Header.LSN, page.Dirty)
	case "putpage":
		if len(args) != 2 {
			return fmt.Errorf("usage: putpage <id> <dirty>")
		}
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		dirty, err := strconv.ParseBool(args[1])
		if err != nil {
			return err
		}
		return s.handle.PutPage(storage.PageID(id), dirty)
	case "checkpoint":
		return s.handle.Checkpoint()
	case "stats":
		data, err := json.MarshalIndent(s.handle.Stats(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func main() {
	dataDir := flag.String("data-dir", "./storageshell-data", "storage data directory")
	flag.Parse()

	s, err := newShell(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storageshell: %v\n", err)
		os.Exit(1)
	}
	defer s.handle.Close()

	if err := s.run(); err != nil {
		fmt.Fprintf(os.Stderr, "storageshell: %v\n", err)
		os.Exit(1)
	}
}
