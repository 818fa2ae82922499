package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// flagSet wraps flag.FlagSet with uint64 and repeatable string flags.
type flagSet struct {
	*flag.FlagSet
}

func newFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}

// Uint64Var defines a uint64 flag.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	*p = value
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
}

// StringsVar defines a flag that may be given more than once, or once with
// comma-separated values.
func (fs *flagSet) StringsVar(p *[]string, name string, usage string) {
	fs.FlagSet.Var(&stringsValue{p: p}, name, usage)
}

// isSet reports whether name was given on the command line.
func (fs *flagSet) isSet(name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

type stringsValue struct {
	p *[]string
}

func (v *stringsValue) String() string {
	if v.p == nil {
		return ""
	}
	return strings.Join(*v.p, ",")
}

func (v *stringsValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*v.p = append(*v.p, part)
		}
	}
	return nil
}
