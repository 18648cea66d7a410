package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/closurekit/closurekit"
)

const version = "0.1.0"

func main() {
	var (
		showVersion bool
		showHelp    bool
		factory     bool
		strict      bool
		development bool
		outputFile  string
	)

	flag.Usage = printUsage

	flag.BoolVar(&showVersion, "v", false, "Print version number and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version number and exit")
	flag.BoolVar(&showHelp, "h", false, "Print help and exit")
	flag.BoolVar(&showHelp, "help", false, "Print help and exit")
	flag.BoolVar(&factory, "factory", false, "Treat the module's export as a zero-argument factory and invoke it at load time")
	flag.BoolVar(&strict, "strict", false, "Fail instead of leaving an identifier in place when a free variable cannot be resolved")
	flag.BoolVar(&development, "dev", false, "Use zap's development (console) logging encoder instead of production JSON")
	flag.StringVar(&outputFile, "o", "", "Write the serialized module here instead of stdout")

	flag.Parse()

	if showVersion {
		fmt.Printf("closurekitc %s\n", version)
		os.Exit(0)
	}
	if showHelp {
		printUsage()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		printUsage()
		os.Exit(1)
	}
	inputFile := args[0]

	source, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file %s: %v\n", inputFile, err)
		os.Exit(1)
	}

	log, err := closurekit.NewLogger(development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	s := closurekit.NewSerializer(log)

	moduleObj := s.Runtime().NewObject()
	moduleObj.Set("exports", s.Runtime().NewObject())
	s.Runtime().Set("module", moduleObj)
	s.Runtime().Set("exports", moduleObj.Get("exports"))

	if _, err := s.Runtime().RunScript(inputFile, string(source)); err != nil {
		fmt.Fprintf(os.Stderr, "Error evaluating %s: %v\n", inputFile, err)
		os.Exit(1)
	}

	root, err := resolveHandler(s.Runtime(), moduleObj.Get("exports"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	module, err := s.Serialize(root, closurekit.Options{
		IsFactoryFunction: factory,
		Strict:            strict,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Serialization error: %v\n", err)
		os.Exit(1)
	}

	out := module.String()
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(out), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file %s: %v\n", outputFile, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Serialized %s -> %s\n", inputFile, outputFile)
		return
	}

	writer := bufio.NewWriter(os.Stdout)
	writer.WriteString(out)
	writer.Flush()
}

// resolveHandler accepts either a module that directly exports a callable
// value (`module.exports = function () {...}`) or one whose `module.exports`
// is itself an object with a callable `handler` property, mirroring how a
// typical serverless entry file is shaped.
func resolveHandler(rt *goja.Runtime, exportsVal goja.Value) (goja.Value, error) {
	if _, ok := goja.AssertFunction(exportsVal); ok {
		return exportsVal, nil
	}
	if obj, ok := exportsVal.(*goja.Object); ok {
		if handler := obj.Get("handler"); handler != nil {
			if _, ok := goja.AssertFunction(handler); ok {
				return handler, nil
			}
		}
	}
	return nil, fmt.Errorf("input file does not export a callable function or class")
}

func printUsage() {
	fmt.Printf(`closurekitc %s
Usage: closurekitc [options] <input.js>

Input:
  <input.js>    A JavaScript file whose module.exports (or exports.handler)
                is the live function/class to serialize.

Examples:
  closurekitc handler.js                  # Serialize to stdout
  closurekitc -o out.js handler.js        # Serialize to file
  closurekitc --factory handler.js        # Invoke the export once at load time

Options:
  -h, --help      Print this help message
  -v, --version   Print version number

Serialization:
  --factory       Export is a zero-argument factory; invoke it at load time
  --strict        Fail on an unresolved free variable instead of leaving it in place

Output:
  -o PATH         Write the serialized module to PATH instead of stdout
  --dev           Use human-readable development logging instead of JSON

`, version)
}
